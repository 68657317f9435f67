package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geo-chat-service/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

// userIDFromContext returns the presence user id supplied by the caller, if any.
func userIDFromContext(c *gin.Context) *string {
	userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if userID == "" {
		return nil
	}
	return &userID
}
