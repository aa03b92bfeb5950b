package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/metrics"
	"storefront/internal/models"
)

type LineRequest struct {
	ProductID string
	Quantity  int
}

type CheckoutRequest struct {
	Items           []LineRequest
	FirstName       string
	LastName        string
	Phone           string
	Email           string
	RegionRef       string
	Commune         string
	DeliveryAddress string
	PostalCode      string
	PaymentMethod   string
	Receipt         *Receipt
	ChallengeToken  string
	Notes           string

	RemoteIP string
	UserID   *primitive.ObjectID
}

// Checkout validates the cart, reserves stock and persists the order in one
// transaction, then hands the order to the notifier. Every validation failure
// happens before anything is written.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (models.Order, error) {
	order, err := s.checkout(ctx, req)
	if err != nil {
		metrics.CheckoutFailures.WithLabelValues(failureReason(err)).Inc()
		return models.Order{}, err
	}
	metrics.OrdersCreated.Inc()
	return order, nil
}

func (s *Service) checkout(ctx context.Context, req CheckoutRequest) (models.Order, error) {
	token := strings.TrimSpace(req.ChallengeToken)
	if token == "" {
		return models.Order{}, ErrSecurityChallengeRequired
	}
	ok, err := s.verifier.Verify(ctx, token, req.RemoteIP)
	if err != nil {
		return models.Order{}, fmt.Errorf("verify challenge: %w", err)
	}
	if !ok {
		return models.Order{}, ErrSecurityChallengeFailed
	}

	if len(req.Items) == 0 {
		return models.Order{}, ErrEmptyOrder
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.Quantity > MaxLineQuantity {
			return models.Order{}, ErrInvalidQuantity
		}
	}

	if err := requireContact(req); err != nil {
		return models.Order{}, err
	}

	lines, err := parseLines(req.Items)
	if err != nil {
		return models.Order{}, err
	}

	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.catalog.FindProducts(ctx, ids)
	if err != nil {
		return models.Order{}, fmt.Errorf("load products: %w", err)
	}
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.Orderable() {
			return models.Order{}, ProductNotFoundError{ProductID: l.ProductID.Hex()}
		}
	}

	for _, l := range lines {
		p := products[l.ProductID]
		if l.Quantity > p.Stock {
			return models.Order{}, InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   l.Quantity,
			}
		}
	}

	region, err := s.regions.ResolveRegion(ctx, req.RegionRef)
	if err != nil {
		return models.Order{}, err
	}
	method, needsReceipt, err := paymentFor(region, req.PaymentMethod)
	if err != nil {
		return models.Order{}, err
	}
	if needsReceipt && (req.Receipt == nil || len(req.Receipt.Data) == 0) {
		return models.Order{}, MissingFieldError{Field: "paymentReceipt"}
	}

	agg := BuildAggregate(lines, products)

	now := s.now()
	order := models.Order{
		OrderNumber:     s.newNumber(now),
		UserID:          req.UserID,
		GuestFirstName:  strings.TrimSpace(req.FirstName),
		GuestLastName:   strings.TrimSpace(req.LastName),
		GuestPhone:      strings.TrimSpace(req.Phone),
		GuestEmail:      strings.TrimSpace(req.Email),
		RegionID:        region.ID,
		Commune:         strings.TrimSpace(req.Commune),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		PostalCode:      strings.TrimSpace(req.PostalCode),
		Items:           agg.Items,
		Subtotal:        agg.Subtotal,
		ShippingCost:    agg.ShippingCost,
		Total:           agg.Total,
		Status:          models.OrderStatusPending,
		PaymentMethod:   method,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if req.Receipt != nil && len(req.Receipt.Data) > 0 && !region.IsCapital {
		ref, err := s.receipts.Save(ctx, *req.Receipt)
		if err != nil {
			return models.Order{}, fmt.Errorf("store receipt: %w", err)
		}
		order.PaymentReceipt = ref
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, item := range order.Items {
			if err := s.stock.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return InsufficientStockError{
						ProductID:   item.ProductID,
						ProductName: item.Name,
						Available:   products[item.ProductID].Stock,
						Requested:   item.Quantity,
					}
				}
				return fmt.Errorf("reserve %s: %w", item.ProductID.Hex(), err)
			}
		}
		return s.orders.Insert(ctx, &order)
	})
	if err != nil {
		if order.PaymentReceipt != "" {
			if delErr := s.receipts.Delete(order.PaymentReceipt); delErr != nil {
				s.log.Warn("receipt cleanup failed", slog.String("ref", order.PaymentReceipt), slog.Any("error", delErr))
			}
		}
		return models.Order{}, err
	}

	order.Region = &region
	s.log.Info("order created",
		slog.String("order_number", order.OrderNumber),
		slog.String("region", region.Code),
		slog.String("total", order.Total.String()),
		slog.Bool("guest", order.UserID == nil),
	)

	s.notifier.Dispatch(order)
	return order, nil
}

func requireContact(req CheckoutRequest) error {
	fields := []struct {
		name  string
		value string
	}{
		{"guestFirstName", req.FirstName},
		{"guestLastName", req.LastName},
		{"guestPhone", req.Phone},
		{"wilayaId", req.RegionRef},
		{"commune", req.Commune},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return MissingFieldError{Field: f.name}
		}
	}
	if digits(req.Phone) == "" {
		return MissingFieldError{Field: "guestPhone"}
	}
	return nil
}

func parseLines(items []LineRequest) ([]Line, error) {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		raw := strings.TrimSpace(item.ProductID)
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, ProductNotFoundError{ProductID: raw}
		}
		lines = append(lines, Line{ProductID: id, Quantity: item.Quantity})
	}
	return MergeLines(lines)
}

// paymentFor applies the region rules: cash on delivery inside the capital,
// pre-payment everywhere else. It returns the method to store and whether a
// receipt image is mandatory.
func paymentFor(region models.Region, raw string) (models.PaymentMethod, bool, error) {
	method := models.PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if method == "" {
		if region.IsCapital {
			method = models.PaymentCashOnDelivery
		} else {
			method = models.PaymentCCP
		}
	}
	if !method.Valid() {
		return "", false, ErrPaymentMethodNotAllowed
	}

	if region.IsCapital {
		if method != models.PaymentCashOnDelivery {
			return "", false, ErrPaymentMethodNotAllowed
		}
		return method, false, nil
	}

	switch method {
	case models.PaymentCashOnDelivery:
		return "", false, ErrPaymentMethodNotAllowed
	case models.PaymentViber:
		return method, false, nil
	default:
		return method, true, nil
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSecurityChallengeRequired), errors.Is(err, ErrSecurityChallengeFailed):
		return "challenge"
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrMissingRequiredField):
		return "validation"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidRegion), errors.Is(err, ErrPaymentMethodNotAllowed):
		return "region"
	default:
		return "internal"
	}
}
