package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/feralbyte/killwatch/cache"
	"github.com/feralbyte/killwatch/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler streams notifications to subscribed clients over SSE.
type Handler struct {
	pubsub   cache.PubSub
	adminKey string
	logger   *zap.Logger
}

// NewHandler creates an SSE Handler. Access is gated on the same admin
// key as the REST admin routes.
func NewHandler(pubsub cache.PubSub, adminKey string, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, adminKey: adminKey, logger: logger}
}

// Stream handles GET /api/stream?key=<admin key>.
// Every notification published to the feed channel is relayed as one
// "notification" SSE event carrying the JSON payload.
func (h *Handler) Stream(c *gin.Context) {
	if h.adminKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming disabled: set server.admin_key in config"})
		return
	}
	if c.Query("key") != h.adminKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	msgCh, unsub, err := h.pubsub.Subscribe(c.Request.Context(), notify.Channel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: notification\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
