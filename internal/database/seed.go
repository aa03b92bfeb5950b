package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/models"
	"storefront/internal/regions"
)

// SeedRegions upserts the wilaya table by code. Existing rows keep their
// shipping cost.
func SeedRegions(ctx context.Context, db *mongo.Database) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	writes := make([]mongo.WriteModel, 0, len(regions.All()))
	for _, r := range regions.All() {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"code": r.Code}).
			SetUpdate(bson.M{
				"$set":         bson.M{"name": r.Name, "isCapital": r.IsCapital},
				"$setOnInsert": bson.M{"shippingCost": r.ShippingCost},
			}).
			SetUpsert(true))
	}

	res, err := db.Collection("regions").BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, err
	}
	return res.UpsertedCount, nil
}

// EnsureAdmin creates the bootstrap dashboard account when no account with
// that email exists. An existing account is never touched.
func EnsureAdmin(ctx context.Context, db *mongo.Database, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.Collection("accounts").UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$setOnInsert": bson.M{
			"name":         "Administrator",
			"email":        email,
			"passwordHash": string(hash),
			"role":         models.RoleAdmin,
			"isActive":     true,
			"createdAt":    now,
			"updatedAt":    now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert admin: %w", err)
	}
	return res.UpsertedCount > 0, nil
}
