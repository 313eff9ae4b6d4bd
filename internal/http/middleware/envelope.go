package middleware

import "github.com/gin-gonic/gin"

// abort stops the chain with the API error envelope. Middleware cannot use
// handlers.Fail (handlers imports this package), so the shape is repeated here.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}

// route returns the matched route pattern, or the raw path when nothing matched.
// Using the pattern keeps log fields and metric labels bounded.
func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
