package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/logging"
)

func EnsureProductIndexes(db *mongo.Database) error {
	return ensure(db, "products", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "published", Value: 1}, {Key: "isDeleted", Value: 1}},
			Options: options.Index().SetName("published_live"),
		},
		{
			Keys:    bson.D{{Key: "categoryId", Value: 1}},
			Options: options.Index().SetName("categoryId_index"),
		},
	})
}

func EnsureCatalogIndexes(db *mongo.Database) error {
	if err := ensure(db, "categories", []mongo.IndexModel{{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("name_unique").SetUnique(true),
	}}); err != nil {
		return err
	}
	return ensure(db, "regions", []mongo.IndexModel{{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetName("code_unique").SetUnique(true),
	}})
}

func EnsureAccountIndexes(db *mongo.Database) error {
	return ensure(db, "accounts", []mongo.IndexModel{{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	}})
}

func EnsureOrderIndexes(db *mongo.Database) error {
	return ensure(db, "orders", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetName("userId_index"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_createdAt"),
		},
	})
}

func ensure(db *mongo.Database, collection string, models []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logging.New("database").With("collection", collection)
	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		log.Error("index creation failed", "err", err)
		return err
	}
	log.Info("indexes ensured", "names", names)
	return nil
}
