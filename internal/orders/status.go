package orders

import (
	"slices"
	"strings"

	"storefront/internal/models"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusConfirmed, models.OrderStatusCanceled},
	models.OrderStatusConfirmed:  {models.OrderStatusProcessing, models.OrderStatusCanceled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCanceled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered, models.OrderStatusCanceled},
	models.OrderStatusDelivered:  {models.OrderStatusReturned},
}

// CanTransition reports whether from -> to is an edge of the order lifecycle.
// Writing the current status again is always allowed and is a no-op.
func CanTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(s models.OrderStatus) []models.OrderStatus {
	return slices.Clone(transitions[s])
}

func IsTerminal(s models.OrderStatus) bool {
	return len(transitions[s]) == 0
}

// ParseStatus accepts any casing ("canceled", "Canceled").
func ParseStatus(raw string) (models.OrderStatus, error) {
	s := models.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}
