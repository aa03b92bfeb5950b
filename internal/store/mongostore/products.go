package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/orders"
)

func (s *Store) FindProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	cursor, err := s.products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []models.Product
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	out := make(map[primitive.ObjectID]models.Product, len(found))
	for _, p := range found {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Store) LiveProductExists(ctx context.Context, ids []primitive.ObjectID) (bool, error) {
	n, err := s.products.CountDocuments(ctx, bson.M{
		"_id":       bson.M{"$in": ids},
		"isDeleted": bson.M{"$ne": true},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Reserve decrements stock only while enough is on hand. The filter and the
// update are one server-side operation, so concurrent reservations can never
// drive stock negative. A non-positive qty would turn the decrement into an
// increment and is refused.
func (s *Store) Reserve(ctx context.Context, productID primitive.ObjectID, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	res, err := s.products.UpdateOne(ctx,
		bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
			"stock":     bson.M{"$gte": qty},
		},
		bson.M{"$inc": bson.M{"stock": -qty}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return orders.ErrInsufficientStock
	}
	return nil
}

func (s *Store) Release(ctx context.Context, productID primitive.ObjectID, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{"$inc": bson.M{"stock": qty}},
	)
	return err
}
