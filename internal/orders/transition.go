package orders

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/metrics"
	"storefront/internal/models"
)

// OrderUpdate is the admin PATCH payload. Nil fields are left untouched.
type OrderUpdate struct {
	Status *models.OrderStatus
	AdminFields
}

// Transition moves an order to status to. Writing the current status again
// is a no-op, which makes repeated cancellation safe.
func (s *Service) Transition(ctx context.Context, id primitive.ObjectID, to models.OrderStatus) (models.Order, error) {
	return s.UpdateOrder(ctx, id, OrderUpdate{Status: &to})
}

// UpdateOrder applies a status change and the admin-only fields in one
// transaction. Cancelling releases every line item's stock in that same
// transaction.
func (s *Service) UpdateOrder(ctx context.Context, id primitive.ObjectID, upd OrderUpdate) (models.Order, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return models.Order{}, ErrInvalidStatus
	}

	var released int
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		released = 0

		order, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if upd.Status != nil {
			n, err := s.applyTransition(ctx, order, *upd.Status)
			if err != nil {
				return err
			}
			released = n
		}

		if !upd.AdminFields.Empty() {
			if err := s.orders.UpdateAdminFields(ctx, id, upd.AdminFields, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	if released > 0 {
		metrics.StockReleased.Add(float64(released))
		s.log.Info("stock restored for canceled order", slog.String("order_id", id.Hex()), slog.Int("units", released))
	}
	return s.GetOrder(ctx, id)
}

func (s *Service) applyTransition(ctx context.Context, order models.Order, to models.OrderStatus) (int, error) {
	from := order.Status
	if from == to {
		return 0, nil
	}
	if !CanTransition(from, to) {
		return 0, TransitionError{From: string(from), To: string(to)}
	}

	now := s.now()
	change := StatusChange{From: from, To: to, At: now}
	switch to {
	case models.OrderStatusShipped:
		if order.ShippedAt == nil {
			change.ShippedAt = &now
		}
	case models.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			change.DeliveredAt = &now
		}
	case models.OrderStatusCanceled:
		change.CanceledAt = &now
	}

	// Compare-and-set on from: a concurrent cancel loses here and never
	// reaches the release loop below.
	if err := s.orders.UpdateStatus(ctx, order.ID, change); err != nil {
		return 0, err
	}
	if to != models.OrderStatusCanceled {
		return 0, nil
	}

	units := 0
	for _, item := range order.Items {
		if err := s.stock.Release(ctx, item.ProductID, item.Quantity); err != nil {
			return 0, fmt.Errorf("release %s: %w", item.ProductID.Hex(), err)
		}
		units += item.Quantity
	}
	return units, nil
}
