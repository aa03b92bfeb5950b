package orders

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrSecurityChallengeRequired = errors.New("security challenge token is required")
	ErrSecurityChallengeFailed   = errors.New("security challenge verification failed")
	ErrEmptyOrder                = errors.New("order must contain at least one item")
	ErrInvalidQuantity           = errors.New("quantity must be between 1 and 1000")
	ErrMissingRequiredField      = errors.New("missing required field")
	ErrProductNotFound           = errors.New("product not found")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInvalidRegion             = errors.New("invalid region")
	ErrPaymentMethodNotAllowed   = errors.New("payment method not allowed for this region")
	ErrDuplicateOrderNumber      = errors.New("duplicate order number")

	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConcurrentUpdate  = errors.New("order was modified concurrently")
	ErrOrderHasLineItems = errors.New("order still references live products")
)

type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e MissingFieldError) Unwrap() error { return ErrMissingRequiredField }

type ProductNotFoundError struct {
	ProductID string
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

func (e ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

type InsufficientStockError struct {
	ProductID   primitive.ObjectID
	ProductName string
	Available   int
	Requested   int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

func (e InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type TransitionError struct {
	From, To string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e TransitionError) Unwrap() error { return ErrInvalidTransition }
