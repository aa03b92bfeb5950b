package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/api/orders", AdminAuth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	exp := time.Now().Add(time.Hour).Unix()
	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no session", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"bad signature", "Bearer eyJhbGciOiJIUzI1NiJ9.e30.c2lnbmF0dXJl", http.StatusUnauthorized},
		{"expired", signed(t, jwt.MapClaims{"role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"customer role", signed(t, jwt.MapClaims{"role": "customer", "exp": exp}), http.StatusForbidden},
		{"admin", signed(t, jwt.MapClaims{"role": "admin", "exp": exp}), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/api/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestOptionalUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/orders", OptionalUser(testSecret), func(c *gin.Context) {
		if id := UserID(c); id != nil {
			c.String(http.StatusOK, id.Hex())
			return
		}
		c.String(http.StatusOK, "guest")
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest", w.Body.String())

	id := primitive.NewObjectID()
	w = do(signed(t, jwt.MapClaims{"userId": id.Hex(), "exp": time.Now().Add(time.Hour).Unix()}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.Hex(), w.Body.String())

	w = do("Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
