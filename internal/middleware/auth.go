package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-Internal-API-Key"

// InternalAuth guards service-to-service routes with a shared key carried in
// the X-Internal-API-Key header. An empty configured key fails closed.
func InternalAuth(key string) gin.HandlerFunc {
	want := []byte(key)

	return func(c *gin.Context) {
		if len(want) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "internal API key not configured",
			})
			return
		}
		got := []byte(c.GetHeader(apiKeyHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}
