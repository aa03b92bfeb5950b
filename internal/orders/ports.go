package orders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// TxRunner runs fn inside one atomic unit. Repositories must use the ctx
// handed to fn so their reads and writes join the transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Catalog interface {
	// FindProducts returns the requested products keyed by id. Missing ids are
	// simply absent from the map.
	FindProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	// LiveProductExists reports whether any of ids is a product that has not
	// been deleted.
	LiveProductExists(ctx context.Context, ids []primitive.ObjectID) (bool, error)
}

// StockLedger is the only way quantity-on-hand changes because of orders.
type StockLedger interface {
	// Reserve decrements stock by qty, or fails with ErrInsufficientStock
	// without touching it.
	Reserve(ctx context.Context, productID primitive.ObjectID, qty int) error
	// Release increments stock by qty unconditionally.
	Release(ctx context.Context, productID primitive.ObjectID, qty int) error
}

type RegionDirectory interface {
	// ResolveRegion accepts a region id (hex) or a wilaya code and fails with
	// ErrInvalidRegion when neither matches.
	ResolveRegion(ctx context.Context, ref string) (models.Region, error)
	RegionByID(ctx context.Context, id primitive.ObjectID) (models.Region, error)
}

// StatusChange is a compare-and-set on the order status: it only applies
// while the stored status still equals From.
type StatusChange struct {
	From        models.OrderStatus
	To          models.OrderStatus
	At          time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CanceledAt  *time.Time
}

type AdminFields struct {
	AdminNotes  *string
	ViberSent   *bool
	ViberNumber *string
}

func (f AdminFields) Empty() bool {
	return f.AdminNotes == nil && f.ViberSent == nil && f.ViberNumber == nil
}

type ListFilter struct {
	Status models.OrderStatus
	Search string
	Page   int64
	Limit  int64
}

type OrderRepository interface {
	// Insert fails with ErrDuplicateOrderNumber when the number is taken.
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	FindByNumber(ctx context.Context, number string) (models.Order, error)
	// UpdateStatus fails with ErrOrderNotFound for an unknown id and with
	// ErrConcurrentUpdate when the stored status is no longer change.From.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, change StatusChange) error
	UpdateAdminFields(ctx context.Context, id primitive.ObjectID, fields AdminFields, at time.Time) error
	List(ctx context.Context, filter ListFilter) ([]models.Order, int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ChallengeVerifier checks a storefront security-challenge token.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type Receipt struct {
	Data        []byte
	ContentType string
}

type ReceiptStore interface {
	Save(ctx context.Context, r Receipt) (string, error)
	Delete(ref string) error
}

// Notifier receives committed orders. Implementations are best effort: they
// must not block the caller and never report failure back to it.
type Notifier interface {
	Dispatch(order models.Order)
}
