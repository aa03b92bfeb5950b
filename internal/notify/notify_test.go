package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/metrics"
	"storefront/internal/models"
)

func sampleOrder() models.Order {
	return models.Order{
		OrderNumber:     "NS-260314-0A1B2C3D",
		GuestFirstName:  "Yacine",
		GuestLastName:   "Haddad",
		GuestPhone:      "0661 22 33 44",
		Region:          &models.Region{Code: "31", Name: "Oran"},
		Commune:         "Bir El Djir",
		DeliveryAddress: "Cité 500 logements, bloc C",
		Items: []models.OrderItem{
			{ProductID: primitive.NewObjectID(), Name: "Whey Isolate 2kg", Quantity: 2, LineTotal: decimal.RequireFromString("11000")},
			{ProductID: primitive.NewObjectID(), Name: "Shaker", Quantity: 1, LineTotal: decimal.RequireFromString("450.5")},
		},
		Subtotal:       decimal.RequireFromString("11450.5"),
		Total:          decimal.RequireFromString("11450.5"),
		PaymentMethod:  models.PaymentCCP,
		PaymentReceipt: "uploads/receipts/abc.jpg",
	}
}

func TestSummaryContent(t *testing.T) {
	s := Summary(sampleOrder())

	for _, want := range []string{
		"NS-260314-0A1B2C3D",
		"31 - Oran [hors Alger]",
		"Yacine Haddad",
		"0661 22 33 44",
		"Bir El Djir, Cité 500 logements, bloc C",
		"- Whey Isolate 2kg × 2 = 11000.00 DA",
		"- Shaker × 1 = 450.50 DA",
		"Sous-total: 11450.50 DA",
		"Total: 11450.50 DA",
		"Paiement: Virement CCP",
		"Reçu joint: oui",
	} {
		assert.Contains(t, s, want)
	}
}

func TestForwardsReceiptOnlyOutsideCapital(t *testing.T) {
	o := sampleOrder()
	assert.True(t, forwardsReceipt(o))

	o.Region = &models.Region{Code: "16", Name: "Alger", IsCapital: true}
	assert.False(t, forwardsReceipt(o))

	o = sampleOrder()
	o.PaymentReceipt = ""
	assert.False(t, forwardsReceipt(o))
}

func TestAsyncDispatcherDeliversInBackground(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	d := NewAsyncDispatcher(SenderFunc(func(_ context.Context, o models.Order) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, o.OrderNumber)
		return nil
	}), 8, WithWorkers(2))

	for _, n := range []string{"A", "B", "C"} {
		d.Dispatch(models.Order{OrderNumber: n})
	}
	require.NoError(t, d.Close(context.Background()))

	assert.ElementsMatch(t, []string{"A", "B", "C"}, sent)
}

func TestAsyncDispatcherDropsWhenFull(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var (
		mu   sync.Mutex
		sent []string
	)
	d := NewAsyncDispatcher(SenderFunc(func(_ context.Context, o models.Order) error {
		started <- struct{}{}
		<-release
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, o.OrderNumber)
		return nil
	}), 1, WithWorkers(1))

	dropped := testutil.ToFloat64(metrics.NotificationsDropped)

	d.Dispatch(models.Order{OrderNumber: "first"})
	<-started
	d.Dispatch(models.Order{OrderNumber: "queued"})

	done := make(chan struct{})
	go func() {
		d.Dispatch(models.Order{OrderNumber: "dropped"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.NotificationsDropped))

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"first", "queued"}, sent)
}

func TestAsyncDispatcherSwallowsFailures(t *testing.T) {
	failed := testutil.ToFloat64(metrics.NotificationsFailed.WithLabelValues("test"))

	d := NewAsyncDispatcher(SenderFunc(func(context.Context, models.Order) error {
		return errors.New("chat unreachable")
	}), 4, WithTransport("test"))
	d.Dispatch(models.Order{OrderNumber: "x"})
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.NotificationsFailed.WithLabelValues("test")))

	// after Close, Dispatch is a counted drop rather than a panic
	d.Dispatch(models.Order{OrderNumber: "late"})
}
