package rest

import (
	"context"
	"net/http"

	"github.com/feralbyte/killwatch/feed/poller"
	"github.com/feralbyte/killwatch/scheduler"
	"github.com/feralbyte/killwatch/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles the operational admin endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	store  *store.Store
	poller *poller.Poller
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(st *store.Store, p *poller.Poller, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: st, poller: p, sched: sched, logger: logger}
}

// Metrics returns service health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	servers, err := h.store.ListServers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"servers":         len(servers),
		"warming_up":      h.poller.Warmup(),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// TriggerTick starts a polling pass immediately instead of waiting for
// the next scheduled one. An already running pass makes the extra tick
// a no-op.
// POST /api/admin/tick
func (h *AdminHandler) TriggerTick(c *gin.Context) {
	h.logger.Info("manual poll tick requested")
	go h.poller.Tick(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"started": true})
}
