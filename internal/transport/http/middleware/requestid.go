package middleware

import (
	"github.com/ErlanBelekov/signage-scheduler/internal/requestid"
	"github.com/gin-gonic/gin"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// RequestID propagates a caller-supplied X-Request-ID or mints a new one.
// Oversized incoming ids are replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = requestid.New()
		}

		c.Request = c.Request.WithContext(requestid.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
