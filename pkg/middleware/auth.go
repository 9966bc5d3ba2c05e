package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/tokens"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(raw string) (*tokens.Claims, error)
}

// Revocations reports access tokens revoked before their expiry.
type Revocations interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(auth[len(prefix):])
	return tok, tok != ""
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier.
// On success it sets "claims" (*tokens.Claims), "user_id" and "access_token".
// Every rejection is a 401 so clients know to refresh.
func AuthMiddleware(ver Verifier, revoked Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorBody{Error: "missing Authorization header", Code: "unauthorized"})
			return
		}

		claims, err := ver.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorBody{Error: "invalid token", Code: "token_invalid", Details: err.Error()})
			return
		}

		if revoked != nil {
			hit, err := revoked.Contains(c.Request.Context(), token)
			if err != nil {
				logger.Errorf("blacklist lookup failed: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorBody{Error: "revocation check failed"})
				return
			}
			if hit {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorBody{Error: "token revoked", Code: "token_revoked"})
				return
			}
		}

		c.Set("claims", claims)
		c.Set("user_id", claims.Subject)
		c.Set("access_token", token)
		c.Next()
	}
}

// RequireRole rejects authenticated callers without role with 403.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get("claims")
		claims, ok := v.(*tokens.Claims)
		if !ok || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorBody{Error: "forbidden", Code: "forbidden"})
			return
		}
		c.Next()
	}
}
