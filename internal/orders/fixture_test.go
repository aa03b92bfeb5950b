package orders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/store/memstore"
)

type fakeVerifier struct{ err error }

func (v fakeVerifier) Verify(_ context.Context, token, _ string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return token == "ok", nil
}

type fakeReceipts struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	seq     int
}

func (r *fakeReceipts) Save(_ context.Context, rc orders.Receipt) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ref := fmt.Sprintf("/uploads/receipts/r%d.jpg", r.seq)
	r.saved[ref] = rc.Data
	return ref, nil
}

func (r *fakeReceipts) Delete(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, ref)
	r.deleted = append(r.deleted, ref)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []models.Order
}

func (n *recordingNotifier) Dispatch(o models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

// failingLedger fails the failOn-th Reserve call with a store error.
type failingLedger struct {
	orders.StockLedger
	failOn int
	calls  int
}

func (l *failingLedger) Reserve(ctx context.Context, id primitive.ObjectID, qty int) error {
	l.calls++
	if l.calls == l.failOn {
		return errors.New("ledger unavailable")
	}
	return l.StockLedger.Reserve(ctx, id, qty)
}

type fixture struct {
	store    *memstore.Store
	svc      *orders.Service
	receipts *fakeReceipts
	notifier *recordingNotifier
}

type fixtureOption func(*orders.Deps, *[]orders.Option)

func withLedger(wrap func(orders.StockLedger) orders.StockLedger) fixtureOption {
	return func(d *orders.Deps, _ *[]orders.Option) { d.Stock = wrap(d.Stock) }
}

func withVerifier(v orders.ChallengeVerifier) fixtureOption {
	return func(d *orders.Deps, _ *[]orders.Option) { d.Verifier = v }
}

func withServiceOption(o orders.Option) fixtureOption {
	return func(_ *orders.Deps, opts *[]orders.Option) { *opts = append(*opts, o) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := memstore.New()
	receipts := &fakeReceipts{saved: map[string][]byte{}}
	notifier := &recordingNotifier{}

	deps := orders.Deps{
		Tx:       store,
		Catalog:  store,
		Stock:    store,
		Regions:  store,
		Orders:   store,
		Verifier: fakeVerifier{},
		Receipts: receipts,
		Notifier: notifier,
	}

	var mu sync.Mutex
	clock := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	svcOpts := []orders.Option{orders.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})}

	for _, opt := range opts {
		opt(&deps, &svcOpts)
	}

	return &fixture{
		store:    store,
		svc:      orders.NewService(deps, svcOpts...),
		receipts: receipts,
		notifier: notifier,
	}
}

func (f *fixture) product(name, price string, stock int) models.Product {
	return f.store.PutProduct(models.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Published: true,
	})
}

func (f *fixture) stock(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	p, ok := f.store.Product(id)
	if !ok {
		t.Fatalf("product %s missing", id.Hex())
	}
	return p.Stock
}

// capitalRequest is a cash-on-delivery checkout inside the capital.
func capitalRequest(items ...orders.LineRequest) orders.CheckoutRequest {
	return orders.CheckoutRequest{
		Items:          items,
		FirstName:      "Amine",
		LastName:       "Benali",
		Phone:          "0555 12 34 56",
		RegionRef:      "16",
		Commune:        "Bab Ezzouar",
		ChallengeToken: "ok",
	}
}

func line(p models.Product, qty int) orders.LineRequest {
	return orders.LineRequest{ProductID: p.ID.Hex(), Quantity: qty}
}
