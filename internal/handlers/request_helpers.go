package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"storefront/internal/logging"
	"storefront/internal/orders"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		logging.From(c).Error("panic recovered", "route", route, "panic", r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	l := logging.From(c)
	if status >= http.StatusInternalServerError {
		l.Error("request failed", "route", route, "status", status, "error", message)
	} else {
		l.Info("request rejected", "route", route, "status", status, "error", message)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondValidationError turns binding failures into a 400 naming the
// offending fields.
func respondValidationError(c *gin.Context, route string, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondWithError(c, http.StatusBadRequest, route, "invalid body: "+err.Error())
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[lowerFirst(fe.Field())] = fe.Tag()
	}
	logging.From(c).Info("request rejected", "route", route, "fields", fields)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "validation failed",
		"fields": fields,
	})
}

// statusForError maps order errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, orders.ErrSecurityChallengeFailed):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrSecurityChallengeRequired),
		errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrMissingRequiredField),
		errors.Is(err, orders.ErrPaymentMethodNotAllowed),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrInvalidRegion),
		errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrConcurrentUpdate),
		errors.Is(err, orders.ErrOrderHasLineItems):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondOrderError writes the JSON error for a failed order operation. Stock
// and lookup failures carry the detail fields the storefront shows.
func respondOrderError(c *gin.Context, route string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logging.From(c).Error("order operation failed", "route", route, "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}

	var stockErr orders.InsufficientStockError
	var notFound orders.ProductNotFoundError
	var missing orders.MissingFieldError
	var transition orders.TransitionError
	switch {
	case errors.As(err, &stockErr):
		body["productId"] = stockErr.ProductID.Hex()
		body["available"] = stockErr.Available
		body["requested"] = stockErr.Requested
	case errors.As(err, &notFound):
		body["productId"] = notFound.ProductID
	case errors.As(err, &missing):
		body["field"] = missing.Field
	case errors.As(err, &transition):
		body["from"] = transition.From
		body["to"] = transition.To
	}

	logging.From(c).Info("request rejected", "route", route, "status", status, "error", err.Error())
	c.AbortWithStatusJSON(status, body)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
