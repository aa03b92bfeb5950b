package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/models"
)

// AccountFinder looks a dashboard account up by lower-cased email. found is
// false when no account matches.
type AccountFinder interface {
	FindAccountByEmail(ctx context.Context, email string) (acc models.Account, found bool, err error)
}

type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func AdminLogin(accounts AccountFinder, jwtSecret string, accessTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/login"
		defer handlePanic(c, route)

		var req AdminLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		email := strings.ToLower(strings.TrimSpace(req.Email))
		admin, found, err := accounts.FindAccountByEmail(ctx, email)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, err.Error())
			return
		}
		if !found || admin.Role != models.RoleAdmin || !admin.IsActive {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}

		claims := jwt.MapClaims{
			"sub":   admin.ID.Hex(),
			"role":  models.RoleAdmin,
			"email": admin.Email,
			"exp":   time.Now().Add(accessTTL).Unix(),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":     signed,
			"expiresIn": int64(accessTTL.Seconds()),
		})
	}
}
