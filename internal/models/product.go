package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name           string              `bson:"name" json:"name"`
	Description    string              `bson:"description,omitempty" json:"description,omitempty"`
	Brand          string              `bson:"brand,omitempty" json:"brand,omitempty"`
	ImagePath      string              `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Price          decimal.Decimal     `bson:"price" json:"price"`
	CompareAtPrice *decimal.Decimal    `bson:"compareAtPrice,omitempty" json:"compareAtPrice,omitempty"`
	IsOnSale       bool                `bson:"-" json:"isOnSale"`
	Stock          int                 `bson:"stock" json:"stock"`
	InStock        bool                `bson:"-" json:"inStock"`
	CategoryID     *primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Published      bool                `bson:"published" json:"published"`
	IsDeleted      bool                `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt      *time.Time          `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Orderable reports whether the storefront may sell the product at all,
// regardless of stock.
func (p Product) Orderable() bool {
	return p.Published && !p.IsDeleted
}
