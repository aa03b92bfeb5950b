package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/idempotency"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/orders"
	"storefront/internal/uploads"
)

// Receipts arrive inline as base64, so the body limit is well above the
// 5MB image cap.
const maxCheckoutBody = 10 << 20

const (
	idempotencyHeader = "X-Idempotency-Key"
	checkoutScope     = "checkout"
)

/* =========================
   REQUEST DTOs
========================= */

// flexID accepts "16", 16 or an ObjectID hex string. Storefronts send the
// wilaya as a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("wilayaId must be a string or a number")
	}
	*f = flexID(n.String())
	return nil
}

type checkoutItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity" binding:"max=1000"`
}

type checkoutRequest struct {
	Items           []checkoutItemRequest `json:"items" binding:"max=200,dive"`
	GuestFirstName  string                `json:"guestFirstName" binding:"max=100"`
	GuestLastName   string                `json:"guestLastName" binding:"max=100"`
	GuestPhone      string                `json:"guestPhone" binding:"max=30"`
	GuestEmail      string                `json:"guestEmail" binding:"omitempty,email"`
	WilayaID        flexID                `json:"wilayaId"`
	Commune         string                `json:"commune" binding:"max=120"`
	DeliveryAddress string                `json:"deliveryAddress" binding:"max=500"`
	PostalCode      string                `json:"postalCode" binding:"max=10"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentReceipt  string                `json:"paymentReceipt"`
	TurnstileToken  string                `json:"turnstileToken"`
	Notes           string                `json:"notes" binding:"max=1000"`
}

func (r checkoutRequest) toCheckout(c *gin.Context) (orders.CheckoutRequest, error) {
	out := orders.CheckoutRequest{
		Items:           make([]orders.LineRequest, 0, len(r.Items)),
		FirstName:       r.GuestFirstName,
		LastName:        r.GuestLastName,
		Phone:           r.GuestPhone,
		Email:           r.GuestEmail,
		RegionRef:       string(r.WilayaID),
		Commune:         r.Commune,
		DeliveryAddress: r.DeliveryAddress,
		PostalCode:      r.PostalCode,
		PaymentMethod:   r.PaymentMethod,
		ChallengeToken:  r.TurnstileToken,
		Notes:           r.Notes,
		RemoteIP:        c.ClientIP(),
		UserID:          middleware.UserID(c),
	}
	for _, it := range r.Items {
		out.Items = append(out.Items, orders.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	if strings.TrimSpace(r.PaymentReceipt) != "" {
		receipt, err := uploads.DecodeReceipt(r.PaymentReceipt)
		if err != nil {
			return orders.CheckoutRequest{}, err
		}
		out.Receipt = &receipt
	}
	return out, nil
}

/* =========================
   CREATE ORDER
========================= */

// CreateOrder runs checkout. A request carrying X-Idempotency-Key that was
// already served gets the original order back with 200 instead of a second
// order.
func CreateOrder(svc *orders.Service, idem idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		ctx := c.Request.Context()
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCheckoutBody)

		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondWithError(c, http.StatusRequestEntityTooLarge, route, "request body too large")
				return
			}
			respondValidationError(c, route, err)
			return
		}

		key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
		if key != "" {
			if prev, ok, err := idem.Recall(ctx, checkoutScope, key); err != nil {
				logging.From(c).Warn("idempotency recall failed", "err", err)
			} else if ok {
				replayOrder(c, svc, route, prev)
				return
			}

			locked, err := idem.TryLock(ctx, checkoutScope, key)
			if err != nil {
				respondWithError(c, http.StatusServiceUnavailable, route, "idempotency store unavailable")
				return
			}
			if !locked {
				respondWithError(c, http.StatusConflict, route, "a request with this idempotency key is in progress")
				return
			}
		}

		in, err := req.toCheckout(c)
		if err != nil {
			releaseKey(c, idem, key)
			respondWithError(c, http.StatusBadRequest, route, "invalid payment receipt: "+err.Error())
			return
		}

		order, err := svc.Checkout(ctx, in)
		if err != nil {
			releaseKey(c, idem, key)
			respondOrderError(c, route, err)
			return
		}

		if key != "" {
			if err := idem.Remember(ctx, checkoutScope, key, order.ID.Hex()); err != nil {
				logging.From(c).Warn("idempotency remember failed", "err", err, "order_number", order.OrderNumber)
			}
		}

		c.JSON(http.StatusCreated, order)
	}
}

func replayOrder(c *gin.Context, svc *orders.Service, route, hexID string) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "corrupt idempotency record")
		return
	}
	order, err := svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondOrderError(c, route, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func releaseKey(c *gin.Context, idem idempotency.Store, key string) {
	if key == "" {
		return
	}
	if err := idem.Unlock(c.Request.Context(), checkoutScope, key); err != nil {
		logging.From(c).Warn("idempotency unlock failed", "err", err)
	}
}

/* =========================
   TRACK ORDER
========================= */

func TrackOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:orderNumber/track"
		defer handlePanic(c, route)

		order, err := svc.TrackOrder(c.Request.Context(), c.Param("orderNumber"), c.Query("phone"))
		if err != nil {
			respondOrderError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
