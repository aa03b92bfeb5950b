package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

// decodeProducts drains cursor and fills the computed fields on each
// product. Legacy numeric prices are handled by the registry codec.
func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var p models.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		decorateProduct(&p)
		products = append(products, p)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
