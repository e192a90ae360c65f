// Package middleware holds the gin middleware shared across the moderator
// API: JWT auth, role gates, CORS and request logging.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/expertlive/backend/internal/auth"
	"github.com/expertlive/backend/pkg/response"
)

// Context keys set by the JWT middleware. Handlers read these to resolve the
// calling expert or admin; spectator endpoints never pass through here.
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextUserEmail = "user_email"
)

// JWT validates the bearer token and stores the caller's identity in the
// request context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
