package orders_test

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/orders"
)

func TestCheckoutReservesStockAndPricesServerSide(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Whey Gold 2kg", "1500", 5)

	order, err := f.svc.Checkout(context.Background(), capitalRequest(line(p1, 2)))
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(3000)))
	assert.True(t, order.Total.Equal(decimal.NewFromInt(3000)))
	assert.True(t, order.ShippingCost.IsZero())
	assert.Equal(t, 3, f.stock(t, p1.ID))

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentCashOnDelivery, order.PaymentMethod)
	require.NotNil(t, order.Region)
	assert.Equal(t, "16", order.Region.Code)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Whey Gold 2kg", order.Items[0].Name)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, 1, f.notifier.count())
}

func TestCheckoutInsufficientStockLeavesStock(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Creatine 300g", "1500", 5)

	_, err := f.svc.Checkout(context.Background(), capitalRequest(line(p1, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	var stockErr orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 10, stockErr.Requested)
	assert.Equal(t, "insufficient stock for Creatine 300g", stockErr.Error())

	assert.Equal(t, 5, f.stock(t, p1.ID))
	_, total, err := f.svc.ListOrders(context.Background(), orders.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, f.notifier.count())
}

func TestCheckoutLastUnitRace(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("BCAA", "900", 1)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(context.Background(), capitalRequest(line(p1, 1)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.stock(t, p1.ID))
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	f := newFixture(t, withLedger(func(l orders.StockLedger) orders.StockLedger {
		return &failingLedger{StockLedger: l, failOn: 2}
	}))
	p1 := f.product("Whey", "1500", 5)
	p2 := f.product("Shaker", "400", 5)

	_, err := f.svc.Checkout(context.Background(), capitalRequest(line(p1, 2), line(p2, 1)))
	require.Error(t, err)

	assert.Equal(t, 5, f.stock(t, p1.ID))
	assert.Equal(t, 5, f.stock(t, p2.ID))
	_, total, err := f.svc.ListOrders(context.Background(), orders.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCheckoutDuplicateOrderNumberRollsBack(t *testing.T) {
	f := newFixture(t, withServiceOption(orders.WithNumberGenerator(func(time.Time) string {
		return "NS-260314-AAAAAAAA"
	})))
	p1 := f.product("Whey", "1500", 5)

	_, err := f.svc.Checkout(context.Background(), capitalRequest(line(p1, 1)))
	require.NoError(t, err)

	_, err = f.svc.Checkout(context.Background(), capitalRequest(line(p1, 1)))
	assert.ErrorIs(t, err, orders.ErrDuplicateOrderNumber)
	assert.Equal(t, 4, f.stock(t, p1.ID))
}

func TestCheckoutMergesRepeatedProducts(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Whey", "1500", 5)

	order, err := f.svc.Checkout(context.Background(), capitalRequest(line(p1, 1), line(p1, 2)))
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(4500)))
	assert.Equal(t, 2, f.stock(t, p1.ID))
}

func TestCheckoutRejectsOverflowingMergedQuantity(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Whey", "1500", 5)

	cases := map[string][]orders.LineRequest{
		"max int twice":      {line(p1, math.MaxInt), line(p1, math.MaxInt)},
		"merged above limit": {line(p1, orders.MaxLineQuantity), line(p1, 1)},
		"single above limit": {line(p1, orders.MaxLineQuantity+1)},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Checkout(context.Background(), capitalRequest(items...))
			require.ErrorIs(t, err, orders.ErrInvalidQuantity)
			assert.Equal(t, 5, f.stock(t, p1.ID))
		})
	}

	_, total, err := f.svc.ListOrders(context.Background(), orders.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, f.notifier.count())
}

func TestCheckoutKeepsPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Whey", "1500", 5)

	order, err := f.svc.Checkout(context.Background(), capitalRequest(line(p1, 2)))
	require.NoError(t, err)

	p1.Price = decimal.NewFromInt(2000)
	p1.Stock = f.stock(t, p1.ID)
	f.store.PutProduct(p1)

	got, err := f.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(1500)))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(3000)))
}

func TestCheckoutSecurityChallenge(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Whey", "1500", 5)

	req := capitalRequest(line(p1, 1))
	req.ChallengeToken = "  "
	_, err := f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, orders.ErrSecurityChallengeRequired)

	req.ChallengeToken = "forged"
	_, err = f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, orders.ErrSecurityChallengeFailed)

	broken := newFixture(t, withVerifier(fakeVerifier{err: errors.New("siteverify down")}))
	p2 := broken.product("Whey", "1500", 5)
	_, err = broken.svc.Checkout(context.Background(), capitalRequest(line(p2, 1)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, orders.ErrSecurityChallengeFailed)

	assert.Equal(t, 5, f.stock(t, p1.ID))
	assert.Equal(t, 5, broken.stock(t, p2.ID))
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Whey", "1500", 5)
	hidden := f.store.PutProduct(models.Product{Name: "Draft", Price: decimal.NewFromInt(10), Stock: 5})
	gone := f.store.PutProduct(models.Product{Name: "Gone", Price: decimal.NewFromInt(10), Stock: 5, Published: true, IsDeleted: true})

	cases := []struct {
		name   string
		mutate func(*orders.CheckoutRequest)
		want   error
		field  string
	}{
		{"empty cart", func(r *orders.CheckoutRequest) { r.Items = nil }, orders.ErrEmptyOrder, ""},
		{"zero quantity", func(r *orders.CheckoutRequest) { r.Items = []orders.LineRequest{line(p1, 0)} }, orders.ErrInvalidQuantity, ""},
		{"negative quantity", func(r *orders.CheckoutRequest) { r.Items = []orders.LineRequest{line(p1, -1)} }, orders.ErrInvalidQuantity, ""},
		{"missing first name", func(r *orders.CheckoutRequest) { r.FirstName = "" }, orders.ErrMissingRequiredField, "guestFirstName"},
		{"missing phone", func(r *orders.CheckoutRequest) { r.Phone = " " }, orders.ErrMissingRequiredField, "guestPhone"},
		{"phone without digits", func(r *orders.CheckoutRequest) { r.Phone = "call me" }, orders.ErrMissingRequiredField, "guestPhone"},
		{"missing region", func(r *orders.CheckoutRequest) { r.RegionRef = "" }, orders.ErrMissingRequiredField, "wilayaId"},
		{"missing commune", func(r *orders.CheckoutRequest) { r.Commune = "" }, orders.ErrMissingRequiredField, "commune"},
		{"malformed product id", func(r *orders.CheckoutRequest) {
			r.Items = []orders.LineRequest{{ProductID: "nope", Quantity: 1}}
		}, orders.ErrProductNotFound, ""},
		{"unpublished product", func(r *orders.CheckoutRequest) { r.Items = []orders.LineRequest{line(hidden, 1)} }, orders.ErrProductNotFound, ""},
		{"deleted product", func(r *orders.CheckoutRequest) { r.Items = []orders.LineRequest{line(gone, 1)} }, orders.ErrProductNotFound, ""},
		{"unknown region", func(r *orders.CheckoutRequest) { r.RegionRef = "99" }, orders.ErrInvalidRegion, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := capitalRequest(line(p1, 1))
			tc.mutate(&req)

			_, err := f.svc.Checkout(context.Background(), req)
			require.ErrorIs(t, err, tc.want)
			if tc.field != "" {
				var missing orders.MissingFieldError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tc.field, missing.Field)
			}
		})
	}

	assert.Equal(t, 5, f.stock(t, p1.ID))
}

func TestCheckoutRegionPaymentRules(t *testing.T) {
	receipt := &orders.Receipt{Data: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"}

	cases := []struct {
		name        string
		region      string
		method      string
		receipt     *orders.Receipt
		want        error
		wantMethod  models.PaymentMethod
		wantReceipt bool
	}{
		{name: "capital defaults to cash", region: "16", wantMethod: models.PaymentCashOnDelivery},
		{name: "capital rejects ccp", region: "16", method: "CCP", want: orders.ErrPaymentMethodNotAllowed},
		{name: "capital ignores receipt", region: "16", receipt: receipt, wantMethod: models.PaymentCashOnDelivery},
		{name: "province defaults to ccp and needs receipt", region: "31", want: orders.ErrMissingRequiredField},
		{name: "province ccp with receipt", region: "31", receipt: receipt, wantMethod: models.PaymentCCP, wantReceipt: true},
		{name: "province baridimob with receipt", region: "5", method: "baridimob", receipt: receipt, wantMethod: models.PaymentBaridiMob, wantReceipt: true},
		{name: "province viber without receipt", region: "31", method: "VIBER", wantMethod: models.PaymentViber},
		{name: "province rejects cash", region: "31", method: "CASH_ON_DELIVERY", receipt: receipt, want: orders.ErrPaymentMethodNotAllowed},
		{name: "unknown method", region: "31", method: "BITCOIN", receipt: receipt, want: orders.ErrPaymentMethodNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			p1 := f.product("Whey", "1500", 5)

			req := capitalRequest(line(p1, 1))
			req.RegionRef = tc.region
			req.PaymentMethod = tc.method
			req.Receipt = tc.receipt

			order, err := f.svc.Checkout(context.Background(), req)
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
				assert.Empty(t, f.receipts.saved)
				assert.Equal(t, 5, f.stock(t, p1.ID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantMethod, order.PaymentMethod)
			if tc.wantReceipt {
				assert.NotEmpty(t, order.PaymentReceipt)
				assert.Contains(t, f.receipts.saved, order.PaymentReceipt)
			} else {
				assert.Empty(t, order.PaymentReceipt)
				assert.Empty(t, f.receipts.saved)
			}
		})
	}
}

func TestCheckoutResolvesRegionByID(t *testing.T) {
	f := newFixture(t)
	p1 := f.product("Whey", "1500", 5)
	oran := f.store.RegionByCode("31")

	req := capitalRequest(line(p1, 1))
	req.RegionRef = oran.ID.Hex()
	req.PaymentMethod = "VIBER"

	order, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, oran.ID, order.RegionID)
}

func TestCheckoutDeletesReceiptWhenTransactionFails(t *testing.T) {
	f := newFixture(t, withLedger(func(l orders.StockLedger) orders.StockLedger {
		return &failingLedger{StockLedger: l, failOn: 1}
	}))
	p1 := f.product("Whey", "1500", 5)

	req := capitalRequest(line(p1, 1))
	req.RegionRef = "31"
	req.Receipt = &orders.Receipt{Data: []byte("img"), ContentType: "image/png"}

	_, err := f.svc.Checkout(context.Background(), req)
	require.Error(t, err)
	assert.Len(t, f.receipts.deleted, 1)
	assert.Empty(t, f.receipts.saved)
}

func TestNewOrderNumberFormat(t *testing.T) {
	at := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^NS-260314-[0-9A-F]{8}$`)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		n := orders.NewOrderNumber(at)
		require.Regexp(t, pattern, n)
		require.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}
