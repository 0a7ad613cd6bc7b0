package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAPIKey is the primary credential carrier.
	HeaderAPIKey = "X-API-Key"
	// QueryAPIKey is accepted as a fallback: browser websocket clients
	// cannot set custom headers on the upgrade request.
	QueryAPIKey = "api_key"
)

// APIKeyMiddleware guards a route group with a shared key. An empty
// configured key disables the check entirely.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		provided := c.GetHeader(HeaderAPIKey)
		if provided == "" {
			provided = c.Query(QueryAPIKey)
		}
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key required"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "api key rejected"})
			return
		}

		c.Next()
	}
}
