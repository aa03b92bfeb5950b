package orders

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// GetOrder returns the order with its region attached.
func (s *Service) GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	return s.withRegion(ctx, order)
}

// TrackOrder lets a guest look an order up by number. The phone must match
// the one given at checkout; a mismatch looks exactly like a missing order.
func (s *Service) TrackOrder(ctx context.Context, number, phone string) (models.Order, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" || strings.TrimSpace(phone) == "" {
		return models.Order{}, ErrOrderNotFound
	}
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return models.Order{}, err
	}
	want := digits(order.GuestPhone)
	if want == "" || want != digits(phone) {
		return models.Order{}, ErrOrderNotFound
	}
	return s.withRegion(ctx, order)
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]models.Order, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	list, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cache := map[primitive.ObjectID]*models.Region{}
	for i := range list {
		if r, ok := cache[list[i].RegionID]; ok {
			list[i].Region = r
			continue
		}
		region, err := s.regions.RegionByID(ctx, list[i].RegionID)
		if err != nil {
			if errors.Is(err, ErrInvalidRegion) {
				continue
			}
			return nil, 0, err
		}
		cache[list[i].RegionID] = &region
		list[i].Region = &region
	}
	return list, total, nil
}

// DeleteOrder hard-deletes an order, but only once none of its line items
// points at a product that still exists.
func (s *Service) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	var receipt string
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		ids := make([]primitive.ObjectID, 0, len(order.Items))
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
		if len(ids) > 0 {
			live, err := s.catalog.LiveProductExists(ctx, ids)
			if err != nil {
				return err
			}
			if live {
				return ErrOrderHasLineItems
			}
		}
		receipt = order.PaymentReceipt
		return s.orders.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if receipt != "" && s.receipts != nil {
		if err := s.receipts.Delete(receipt); err != nil {
			s.log.Warn("receipt delete failed", "ref", receipt, "error", err)
		}
	}
	return nil
}

func (s *Service) withRegion(ctx context.Context, order models.Order) (models.Order, error) {
	region, err := s.regions.RegionByID(ctx, order.RegionID)
	if err != nil {
		if errors.Is(err, ErrInvalidRegion) {
			return order, nil
		}
		return models.Order{}, err
	}
	order.Region = &region
	return order, nil
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
