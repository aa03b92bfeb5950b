// Package mongostore implements the order ports on MongoDB.
package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/orders"
)

type Store struct {
	db       *mongo.Database
	products *mongo.Collection
	regions  *mongo.Collection
	orders   *mongo.Collection
	accounts *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		products: db.Collection("products"),
		regions:  db.Collection("regions"),
		orders:   db.Collection("orders"),
		accounts: db.Collection("accounts"),
	}
}

// WithTransaction runs fn in a multi-document transaction. When ctx already
// carries a session, fn joins it.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

var (
	_ orders.TxRunner        = (*Store)(nil)
	_ orders.Catalog         = (*Store)(nil)
	_ orders.StockLedger     = (*Store)(nil)
	_ orders.RegionDirectory = (*Store)(nil)
	_ orders.OrderRepository = (*Store)(nil)
)
