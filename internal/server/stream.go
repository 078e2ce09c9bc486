package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	streamEventNotification = "notification"
	streamEventHeartbeat    = "heartbeat"
)

// handleNotificationStream relays live notifications for one user as server-sent events.
func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	userID := c.Param("userID")
	if !h.authorizeSubject(c, userID) {
		return
	}

	ctx := c.Request.Context()
	messages, cleanup := h.dispatcher.Subscribe(ctx, userID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent(streamEventNotification, message)
			return true
		case <-ticker.C:
			c.SSEvent(streamEventHeartbeat, gin.H{"timestamp": h.clock().UTC().Unix()})
			return true
		}
	})
}
