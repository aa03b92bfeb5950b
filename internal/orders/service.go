// Package orders implements checkout and the order lifecycle on top of the
// catalog, stock ledger and order repository ports.
package orders

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/logging"
	"storefront/internal/models"
)

type Deps struct {
	Tx       TxRunner
	Catalog  Catalog
	Stock    StockLedger
	Regions  RegionDirectory
	Orders   OrderRepository
	Verifier ChallengeVerifier
	Receipts ReceiptStore
	Notifier Notifier
}

type Service struct {
	tx       TxRunner
	catalog  Catalog
	stock    StockLedger
	regions  RegionDirectory
	orders   OrderRepository
	verifier ChallengeVerifier
	receipts ReceiptStore
	notifier Notifier

	now       func() time.Time
	newNumber func(time.Time) string
	log       *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithNumberGenerator(fn func(time.Time) string) Option {
	return func(s *Service) { s.newNumber = fn }
}

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(d Deps, opts ...Option) *Service {
	s := &Service{
		tx:        d.Tx,
		catalog:   d.Catalog,
		stock:     d.Stock,
		regions:   d.Regions,
		orders:    d.Orders,
		verifier:  d.Verifier,
		receipts:  d.Receipts,
		notifier:  d.Notifier,
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: NewOrderNumber,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New("orders")
	}
	return s
}

// NewOrderNumber returns "NS-YYMMDD-XXXXXXXX". The random part comes from a
// v4 UUID; uniqueness is enforced by the store, not here.
func NewOrderNumber(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return "NS-" + t.Format("060102") + "-" + suffix
}

type nopNotifier struct{}

func (nopNotifier) Dispatch(models.Order) {}
