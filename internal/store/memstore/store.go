// Package memstore is an in-process implementation of the order ports. A
// single mutex serialises transactions, and a failed transaction restores the
// snapshot taken when it began.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/regions"
)

type txKey struct{}

type Store struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
	regions  map[primitive.ObjectID]models.Region
	orders   map[primitive.ObjectID]models.Order
	numbers  map[string]primitive.ObjectID
	accounts map[string]models.Account
}

type snapshot struct {
	products map[primitive.ObjectID]models.Product
	orders   map[primitive.ObjectID]models.Order
	numbers  map[string]primitive.ObjectID
}

// New returns a store seeded with the wilaya table.
func New() *Store {
	s := &Store{
		products: map[primitive.ObjectID]models.Product{},
		regions:  map[primitive.ObjectID]models.Region{},
		orders:   map[primitive.ObjectID]models.Order{},
		numbers:  map[string]primitive.ObjectID{},
		accounts: map[string]models.Account{},
	}
	for _, r := range regions.All() {
		r.ID = primitive.NewObjectID()
		s.regions[r.ID] = r
	}
	return s
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		products: maps.Clone(s.products),
		orders:   maps.Clone(s.orders),
		numbers:  maps.Clone(s.numbers),
	}
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.products, s.orders, s.numbers = snap.products, snap.orders, snap.numbers
		return err
	}
	return nil
}

func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// PutProduct inserts or replaces a product, assigning an id when missing.
func (s *Store) PutProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID] = p
	return p
}

func (s *Store) Product(id primitive.ObjectID) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// RegionByCode is a test convenience.
func (s *Store) RegionByCode(code string) models.Region {
	r, _ := s.ResolveRegion(context.Background(), code)
	return r
}

// Catalog

func (s *Store) FindProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	defer s.lock(ctx)()
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) LiveProductExists(ctx context.Context, ids []primitive.ObjectID) (bool, error) {
	defer s.lock(ctx)()
	for _, id := range ids {
		if p, ok := s.products[id]; ok && !p.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

// Stock ledger

func (s *Store) Reserve(ctx context.Context, productID primitive.ObjectID, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok || p.IsDeleted || p.Stock < qty {
		return orders.ErrInsufficientStock
	}
	p.Stock -= qty
	s.products[productID] = p
	return nil
}

func (s *Store) Release(ctx context.Context, productID primitive.ObjectID, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok {
		return nil
	}
	p.Stock += qty
	s.products[productID] = p
	return nil
}

// Regions

func (s *Store) ResolveRegion(ctx context.Context, ref string) (models.Region, error) {
	ref = strings.TrimSpace(ref)
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return s.RegionByID(ctx, id)
	}
	code, ok := regions.NormalizeCode(ref)
	if !ok {
		return models.Region{}, orders.ErrInvalidRegion
	}
	for _, r := range s.regions {
		if r.Code == code {
			return r, nil
		}
	}
	return models.Region{}, orders.ErrInvalidRegion
}

func (s *Store) RegionByID(_ context.Context, id primitive.ObjectID) (models.Region, error) {
	r, ok := s.regions[id]
	if !ok {
		return models.Region{}, orders.ErrInvalidRegion
	}
	return r, nil
}

// Orders

func (s *Store) Insert(ctx context.Context, order *models.Order) error {
	defer s.lock(ctx)()
	if _, taken := s.numbers[order.OrderNumber]; taken {
		return orders.ErrDuplicateOrderNumber
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	stored := *order
	stored.Region = nil
	stored.Items = slices.Clone(order.Items)
	s.orders[order.ID] = stored
	s.numbers[order.OrderNumber] = order.ID
	return nil
}

func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	defer s.lock(ctx)()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, orders.ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	return o, nil
}

func (s *Store) FindByNumber(ctx context.Context, number string) (models.Order, error) {
	defer s.lock(ctx)()
	id, ok := s.numbers[number]
	if !ok {
		return models.Order{}, orders.ErrOrderNotFound
	}
	o := s.orders[id]
	o.Items = slices.Clone(o.Items)
	return o, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, change orders.StatusChange) error {
	defer s.lock(ctx)()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.Status != change.From {
		return orders.ErrConcurrentUpdate
	}
	o.Status = change.To
	o.UpdatedAt = change.At
	if change.ShippedAt != nil {
		o.ShippedAt = change.ShippedAt
	}
	if change.DeliveredAt != nil {
		o.DeliveredAt = change.DeliveredAt
	}
	if change.CanceledAt != nil {
		o.CanceledAt = change.CanceledAt
	}
	s.orders[id] = o
	return nil
}

func (s *Store) UpdateAdminFields(ctx context.Context, id primitive.ObjectID, f orders.AdminFields, at time.Time) error {
	defer s.lock(ctx)()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if f.AdminNotes != nil {
		o.AdminNotes = *f.AdminNotes
	}
	if f.ViberSent != nil {
		o.ViberSent = *f.ViberSent
	}
	if f.ViberNumber != nil {
		o.ViberNumber = *f.ViberNumber
	}
	o.UpdatedAt = at
	s.orders[id] = o
	return nil
}

func (s *Store) List(ctx context.Context, filter orders.ListFilter) ([]models.Order, int64, error) {
	defer s.lock(ctx)()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	matched := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(o, search) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []models.Order{}, total, nil
	}
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer s.lock(ctx)()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	delete(s.orders, id)
	delete(s.numbers, o.OrderNumber)
	return nil
}

func matchesSearch(o models.Order, search string) bool {
	for _, field := range []string{o.OrderNumber, o.GuestPhone, o.GuestFirstName, o.GuestLastName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

var (
	_ orders.TxRunner        = (*Store)(nil)
	_ orders.Catalog         = (*Store)(nil)
	_ orders.StockLedger     = (*Store)(nil)
	_ orders.RegionDirectory = (*Store)(nil)
	_ orders.OrderRepository = (*Store)(nil)
)

// Regions lists every wilaya ordered by code.
func (s *Store) Regions(ctx context.Context) ([]models.Region, error) {
	defer s.lock(ctx)()
	out := make([]models.Region, 0, len(s.regions))
	for _, r := range s.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
