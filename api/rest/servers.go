package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/feralbyte/killwatch/cache"
	"github.com/feralbyte/killwatch/feed/poller"
	"github.com/feralbyte/killwatch/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MapResolver looks up which map a game server runs, from the hosting
// provider's settings.
type MapResolver interface {
	MapName(ctx context.Context, serverID string) (string, error)
}

// SourceForgetter drops in-memory pipeline state for a server.
type SourceForgetter interface {
	ForgetServer(serverID string)
}

// ServerHandler handles the game server registry endpoints.
type ServerHandler struct {
	store  *store.Store
	remote MapResolver
	feed   SourceForgetter
	cache  cache.Cache
	logger *zap.Logger
}

// NewServerHandler creates a ServerHandler.
func NewServerHandler(st *store.Store, remote MapResolver, feed SourceForgetter, c cache.Cache, logger *zap.Logger) *ServerHandler {
	return &ServerHandler{store: st, remote: remote, feed: feed, cache: c, logger: logger}
}

type serverInfo struct {
	ServerID string `json:"server_id"`
	Map      string `json:"map"`
	Online   string `json:"online,omitempty"`
}

// List returns all registered servers with their last known online count.
// GET /api/servers
func (h *ServerHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	servers, err := h.store.ListServers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	result := make([]serverInfo, 0, len(servers))
	for _, srv := range servers {
		info := serverInfo{ServerID: srv.ServerID, Map: srv.Map}
		if online, err := h.cache.Get(ctx, poller.KeyOnlinePrefix+srv.ServerID); err == nil {
			info.Online = online
		}
		result = append(result, info)
	}
	c.JSON(http.StatusOK, gin.H{"servers": result, "count": len(result)})
}

// Register adds a server to the polling set. The map is resolved from
// the provider settings; an unreachable provider falls back to the
// default map rather than blocking registration.
// POST /api/admin/servers
func (h *ServerHandler) Register(c *gin.Context) {
	var req struct {
		ServerID string `json:"server_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_id required"})
		return
	}
	ctx := c.Request.Context()

	mapName, err := h.remote.MapName(ctx, req.ServerID)
	if err != nil {
		h.logger.Warn("map lookup failed, using default",
			zap.String("server", req.ServerID), zap.Error(err))
		mapName = "chernarus"
	}

	srv, err := h.store.RegisterServer(ctx, req.ServerID, mapName)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "server already registered"})
		return
	}
	h.logger.Info("server registered",
		zap.String("server", srv.ServerID), zap.String("map", srv.Map))
	c.JSON(http.StatusOK, gin.H{"server_id": srv.ServerID, "map": srv.Map})
}

// Remove deletes a server registration and drops its pipeline state,
// so re-registering later starts from a clean correlator.
// DELETE /api/admin/servers/:id
func (h *ServerHandler) Remove(c *gin.Context) {
	serverID := c.Param("id")
	err := h.store.RemoveServer(c.Request.Context(), serverID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "server not registered"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	h.feed.ForgetServer(serverID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
