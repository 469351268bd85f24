package rest

import (
	"net/http"
	"strconv"

	"github.com/feralbyte/killwatch/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler serves the recent notification backlog.
type NotificationHandler struct {
	svc    *notify.Service
	logger *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(svc *notify.Service, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Recent returns the most recent notifications, newest first.
// GET /api/notifications?limit=50
func (h *NotificationHandler) Recent(c *gin.Context) {
	var limit int64
	if l, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && l > 0 {
		limit = l
	}
	items, err := h.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load recent notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}
