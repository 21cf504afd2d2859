package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderName is the capability credential header required on write paths.
const HeaderName = "X-Api-Key"

// APIKeyMiddleware rejects requests whose shared-secret header does not
// match the configured key. No detail about the mismatch is leaked.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader(HeaderName)
		if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
