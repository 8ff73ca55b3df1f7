package middleware

import (
	"github.com/didip/tollbooth/v7"
	"github.com/gin-gonic/gin"
)

// RateLimit throttles each client IP to perMinute requests with the given burst.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	lmt := tollbooth.NewLimiter(float64(perMinute)/60.0, nil)
	if burst > 0 {
		lmt.SetBurst(burst)
	}
	lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	lmt.SetMessage("too many requests")

	return func(c *gin.Context) {
		if httpErr := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); httpErr != nil {
			c.AbortWithStatusJSON(httpErr.StatusCode, gin.H{"error": httpErr.Message})
			return
		}
		c.Next()
	}
}
