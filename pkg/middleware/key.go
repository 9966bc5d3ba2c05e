package middleware

import "github.com/gin-gonic/gin"

// limiterKey prefers the authenticated user id (set by AuthMiddleware) and
// falls back to the client IP.
func limiterKey(c *gin.Context) string {
	if uid := c.GetString("user_id"); uid != "" {
		return "user:" + uid
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
