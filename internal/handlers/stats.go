package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geo-chat-service/internal/models"
)

// StatsProvider reports store counters.
type StatsProvider interface {
	Stats() models.Stats
}

// ConnCounter reports the number of live websocket connections.
type ConnCounter interface {
	Count() int
}

// StatsHandler serves the service banner, health and stats endpoints.
type StatsHandler struct {
	stats   StatsProvider
	conns   ConnCounter
	version string
	started time.Time
	now     func() time.Time
}

func NewStatsHandler(stats StatsProvider, conns ConnCounter, version string) *StatsHandler {
	return &StatsHandler{
		stats:   stats,
		conns:   conns,
		version: version,
		started: time.Now(),
		now:     time.Now,
	}
}

func (h *StatsHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Geo chat service",
		"version":   h.version,
		"timestamp": h.timestamp(),
	})
}

func (h *StatsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    h.now().Sub(h.started).Seconds(),
		"stats":     h.stats.Stats(),
		"timestamp": h.timestamp(),
	})
}

func (h *StatsHandler) Stats(c *gin.Context) {
	stats := h.stats.Stats()
	c.JSON(http.StatusOK, gin.H{
		"totalUsers":         stats.TotalUsers,
		"onlineUsers":        stats.OnlineUsers,
		"totalMessages":      stats.TotalMessages,
		"totalConversations": stats.TotalConversations,
		"connectedSockets":   h.conns.Count(),
		"timestamp":          h.timestamp(),
	})
}

// NotFound answers unmatched routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Not found",
		"message": "Route " + c.Request.Method + " " + c.Request.URL.Path + " not found",
	})
}

func (h *StatsHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}
