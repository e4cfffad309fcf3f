package handler

import (
	"net/http"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/gin-gonic/gin"
)

// envelope is the body of every API response.
type envelope struct {
	Success   bool                   `json:"success"`
	Data      any                    `json:"data,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Errors    map[string]string      `json:"errors,omitempty"`
	Conflicts []domain.ConflictEntry `json:"conflicts,omitempty"`
	Count     *int                   `json:"count,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func ok(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message, Timestamp: time.Now()})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Message: message, Timestamp: time.Now()})
}

func invalid(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, envelope{
		Success:   false,
		Message:   errInvalidData,
		Errors:    fields,
		Timestamp: time.Now(),
	})
}

// MethodNotAllowed answers every unmatched route or method.
func MethodNotAllowed(c *gin.Context) {
	fail(c, http.StatusMethodNotAllowed, errNotSupported)
}
