package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/idempotency"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/store/memstore"
	"storefront/internal/turnstile"
	"storefront/internal/uploads"
)

const testSecret = "handler-test-secret"

type testServer struct {
	engine *gin.Engine
	store  *memstore.Store
	files  *uploads.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	files := uploads.New(t.TempDir())
	svc := orders.NewService(orders.Deps{
		Tx:       store,
		Catalog:  store,
		Stock:    store,
		Regions:  store,
		Orders:   store,
		Verifier: turnstile.Static("ok"),
		Receipts: files,
	})

	r := gin.New()
	r.Use(middleware.RequestLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	r.POST("/admin/login", AdminLogin(store, testSecret, time.Hour))
	r.GET("/regions", GetRegions(store))
	r.POST("/orders", middleware.OptionalUser(testSecret), CreateOrder(svc, idempotency.NewMemoryStore(time.Hour)))
	r.GET("/orders/:orderNumber/track", TrackOrder(svc))

	admin := r.Group("/admin/api", middleware.AdminAuth(testSecret))
	admin.GET("/orders", ListOrders(svc))
	admin.GET("/orders/:id", GetOrder(svc))
	admin.PATCH("/orders/:id", UpdateOrder(svc))
	admin.DELETE("/orders/:id", DeleteOrder(svc))

	return &testServer{engine: r, store: store, files: files}
}

func (s *testServer) product(name, price string, stock int) models.Product {
	return s.store.PutProduct(models.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Published: true,
	})
}

func (s *testServer) stock(t *testing.T, p models.Product) int {
	t.Helper()
	got, ok := s.store.Product(p.ID)
	require.True(t, ok)
	return got.Stock
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func adminHeader(t *testing.T) map[string]string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "admin",
		"role": models.RoleAdmin,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func capitalBody(items ...gin.H) gin.H {
	return gin.H{
		"items":          items,
		"guestFirstName": "Yacine",
		"guestLastName":  "Brahimi",
		"guestPhone":     "0661 22 33 44",
		"wilayaId":       16,
		"commune":        "Hydra",
		"turnstileToken": "ok",
	}
}

func item(p models.Product, qty int) gin.H {
	return gin.H{"productId": p.ID.Hex(), "quantity": qty}
}
