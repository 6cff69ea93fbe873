package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/venalabs/authbridge/internal/token"
)

const sessionContextKey = "authbridge.session"

// RequireSession verifies the bearer credential on the request and puts
// the session claims on the gin context.
func (h *HTTPHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer credential"})
			return
		}

		claims, err := h.svc.Signer().VerifySession(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session credential"})
			return
		}

		c.Set(sessionContextKey, &claims)
		c.Next()
	}
}

// SessionFromContext returns the verified session claims, or nil when
// the request carried none.
func SessionFromContext(c *gin.Context) *token.SessionClaims {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*token.SessionClaims)
	return claims
}
