package mongostore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/orders"
)

func (s *Store) Insert(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := s.orders.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return orders.ErrDuplicateOrderNumber
	}
	return err
}

func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	return s.findOrder(ctx, bson.M{"_id": id})
}

func (s *Store) FindByNumber(ctx context.Context, number string) (models.Order, error) {
	return s.findOrder(ctx, bson.M{"orderNumber": number})
}

func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, change orders.StatusChange) error {
	set := bson.M{"status": change.To, "updatedAt": change.At}
	if change.ShippedAt != nil {
		set["shippedAt"] = change.ShippedAt
	}
	if change.DeliveredAt != nil {
		set["deliveredAt"] = change.DeliveredAt
	}
	if change.CanceledAt != nil {
		set["canceledAt"] = change.CanceledAt
	}

	res, err := s.orders.UpdateOne(ctx, bson.M{"_id": id, "status": change.From}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the order is gone or someone moved it first.
	n, err := s.orders.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return orders.ErrOrderNotFound
	}
	return orders.ErrConcurrentUpdate
}

func (s *Store) UpdateAdminFields(ctx context.Context, id primitive.ObjectID, f orders.AdminFields, at time.Time) error {
	set := bson.M{"updatedAt": at}
	if f.AdminNotes != nil {
		set["adminNotes"] = *f.AdminNotes
	}
	if f.ViberSent != nil {
		set["viberSent"] = *f.ViberSent
	}
	if f.ViberNumber != nil {
		set["viberNumber"] = *f.ViberNumber
	}

	res, err := s.orders.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter orders.ListFilter) ([]models.Order, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"orderNumber": pattern},
			bson.M{"guestPhone": pattern},
			bson.M{"guestFirstName": pattern},
			bson.M{"guestLastName": pattern},
		}
	}

	total, err := s.orders.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((filter.Page - 1) * filter.Limit).
		SetLimit(filter.Limit)

	cursor, err := s.orders.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	out := []models.Order{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.orders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (s *Store) findOrder(ctx context.Context, filter bson.M) (models.Order, error) {
	var o models.Order
	err := s.orders.FindOne(ctx, filter).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	return o, nil
}
