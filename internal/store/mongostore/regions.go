package mongostore

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/regions"
)

func (s *Store) ResolveRegion(ctx context.Context, ref string) (models.Region, error) {
	ref = strings.TrimSpace(ref)
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return s.RegionByID(ctx, id)
	}

	code, ok := regions.NormalizeCode(ref)
	if !ok {
		return models.Region{}, orders.ErrInvalidRegion
	}
	return s.findRegion(ctx, bson.M{"code": code})
}

func (s *Store) RegionByID(ctx context.Context, id primitive.ObjectID) (models.Region, error) {
	return s.findRegion(ctx, bson.M{"_id": id})
}

// Regions lists every wilaya ordered by code.
func (s *Store) Regions(ctx context.Context) ([]models.Region, error) {
	cursor, err := s.regions.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Region{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) findRegion(ctx context.Context, filter bson.M) (models.Region, error) {
	var r models.Region
	err := s.regions.FindOne(ctx, filter).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Region{}, orders.ErrInvalidRegion
	}
	if err != nil {
		return models.Region{}, err
	}
	return r, nil
}
