package models

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Region is a delivery wilaya. ShippingCost is kept for the dashboard but
// checkout always charges zero shipping.
type Region struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code         string             `bson:"code" json:"code"`
	Name         string             `bson:"name" json:"name"`
	IsCapital    bool               `bson:"isCapital" json:"isCapital"`
	ShippingCost decimal.Decimal    `bson:"shippingCost" json:"shippingCost"`
}
