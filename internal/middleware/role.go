package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/expertlive/backend/pkg/response"
)

// RequireRole allows only callers holding one of the given roles. It runs
// after JWT, which is what populates the role in the context; per-session
// ownership is checked in the handlers, not here.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := v.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
