package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/models"
)

func TestAdminLogin(t *testing.T) {
	s := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := s.store.PutAccount(models.Account{
		Email:        "Owner@Shop.dz",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	})
	s.store.PutAccount(models.Account{
		Email:        "former@shop.dz",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	})

	w := s.do(t, http.MethodPost, "/admin/login", gin.H{"email": "OWNER@shop.dz", "password": "s3cret!"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[gin.H](t, w)
	raw, ok := body["token"].(string)
	require.True(t, ok)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	assert.Equal(t, admin.ID.Hex(), claims["sub"])
	assert.Equal(t, models.RoleAdmin, claims["role"])

	w = s.do(t, http.MethodGet, "/admin/api/orders", nil, map[string]string{"Authorization": "Bearer " + raw})
	assert.Equal(t, http.StatusOK, w.Code)

	for name, req := range map[string]gin.H{
		"wrong password": {"email": "owner@shop.dz", "password": "nope"},
		"unknown email":  {"email": "nobody@shop.dz", "password": "s3cret!"},
		"inactive":       {"email": "former@shop.dz", "password": "s3cret!"},
	} {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/admin/login", req, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	w = s.do(t, http.MethodPost, "/admin/login", gin.H{"email": "owner@shop.dz"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
