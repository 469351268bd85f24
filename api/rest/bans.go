package rest

import (
	"errors"
	"net/http"

	"github.com/feralbyte/killwatch/feed/cascade"
	"github.com/feralbyte/killwatch/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BanHandler exposes device ban moderation. All mutations go through
// the cascade policy so every registered server is kept in sync.
type BanHandler struct {
	store  *store.Store
	policy *cascade.Policy
	logger *zap.Logger
}

// NewBanHandler creates a BanHandler.
func NewBanHandler(st *store.Store, policy *cascade.Policy, logger *zap.Logger) *BanHandler {
	return &BanHandler{store: st, policy: policy, logger: logger}
}

// List returns all device bans.
// GET /api/admin/bans
func (h *BanHandler) List(c *gin.Context) {
	bans, err := h.store.ListDeviceBans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bans": bans, "count": len(bans)})
}

// Ban bans a device across every registered server. The identifier may
// be a device id or a player name.
// POST /api/admin/bans
func (h *BanHandler) Ban(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier required"})
		return
	}

	report, err := h.policy.BanDevice(c.Request.Context(), req.Identifier)
	if errors.Is(err, cascade.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "operation already in progress"})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown identifier"})
		return
	}
	if err != nil {
		h.logger.Error("ban cascade failed", zap.String("identifier", req.Identifier), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ban failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Unban lifts a device ban across every registered server.
// DELETE /api/admin/bans/:id
func (h *BanHandler) Unban(c *gin.Context) {
	report, err := h.policy.UnbanDevice(c.Request.Context(), c.Param("id"))
	if errors.Is(err, cascade.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "operation already in progress"})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown identifier"})
		return
	}
	if err != nil {
		h.logger.Error("unban cascade failed", zap.String("identifier", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unban failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}
