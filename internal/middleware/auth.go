package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

const (
	PrincipalKey = "principal"
	UserIDKey    = "userID"
	UserRoleKey  = "userRole"

	TokenCookie = "jwt"
)

// Protect verifies the bearer token and loads its principal from principals.
// Handlers behind it can read the principal with Current.
func Protect[T models.Principal](tokens *utils.TokenManager, principals store.Principals[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			Abort(c, utils.Unauthorized("You are not logged in! Please log in to get access."))
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			Abort(c, err)
			return
		}

		principal, err := principals.FindByID(c.Request.Context(), claims.PrincipalID)
		if err != nil {
			var invalidID *store.InvalidIDError
			if errors.Is(err, store.ErrNotFound) || errors.As(err, &invalidID) {
				Abort(c, utils.Unauthorized("The user the token belongs to no longer exists."))
				return
			}
			Abort(c, err)
			return
		}

		acc := principal.GetAccount()
		if acc.ChangedPasswordAfter(claims.IssuedAt.Time) {
			Abort(c, utils.Unauthorized("User recently changed password! Please log in again."))
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(UserIDKey, acc.ID.Hex())
		c.Set(UserRoleKey, acc.Role)
		c.Next()
	}
}

// RestrictTo must run after Protect.
func RestrictTo(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(UserRoleKey)) {
			Abort(c, utils.Forbidden("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

// Current returns the principal attached by Protect.
func Current[T models.Principal](c *gin.Context) (T, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		var zero T
		return zero, false
	}
	p, ok := v.(T)
	return p, ok
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "loggedout" {
		return cookie
	}
	return ""
}
