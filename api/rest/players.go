package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/feralbyte/killwatch/cache"
	"github.com/feralbyte/killwatch/feed/poller"
	"github.com/feralbyte/killwatch/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const leaderboardTop = 100

// PlayerHandler handles player stat and leaderboard endpoints.
type PlayerHandler struct {
	store  *store.Store
	cache  cache.Cache
	logger *zap.Logger
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(st *store.Store, c cache.Cache, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{store: st, cache: c, logger: logger}
}

// LeaderboardEntry is one row in the kill leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Kills  int    `json:"kills"`
	Deaths int    `json:"deaths,omitempty"`
}

// Stats returns the full stat line for one player.
// GET /api/players/:name
func (h *PlayerHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.store.PlayerByName(ctx, c.Param("name"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	rank, err := h.store.KillRank(ctx, p.Name)
	if err != nil {
		rank = 0
	}
	kd := float64(p.Kills)
	if p.Deaths > 0 {
		kd = float64(p.Kills) / float64(p.Deaths)
	}
	c.JSON(http.StatusOK, gin.H{
		"name":          p.Name,
		"kills":         p.Kills,
		"deaths":        p.Deaths,
		"kd":            kd,
		"kill_streak":   p.KillStreak,
		"death_streak":  p.DeathStreak,
		"rank":          rank,
		"alive_since":   p.AliveSince,
		"alive_seconds": time.Now().Unix() - p.AliveSince,
	})
}

// TopKills returns the kill leaderboard, best first. The cached sorted
// set is preferred; a cold cache falls back to the database and warms
// the set on the way out.
// GET /api/leaderboard/kills?limit=20
func (h *PlayerHandler) TopKills(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= leaderboardTop {
		limit = l
	}
	ctx := c.Request.Context()

	members, err := h.cache.ZRevRange(ctx, poller.KeyKillLeaderboard, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]LeaderboardEntry, 0, len(members))
		for i, name := range members {
			score, _ := h.cache.ZScore(ctx, poller.KeyKillLeaderboard, name)
			entries = append(entries, LeaderboardEntry{Rank: i + 1, Name: name, Kills: int(score)})
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
		return
	}

	players, err := h.store.TopKills(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{Rank: i + 1, Name: p.Name, Kills: p.Kills, Deaths: p.Deaths}
		_ = h.cache.ZAdd(ctx, poller.KeyKillLeaderboard, float64(p.Kills), p.Name)
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// TopDeaths returns the death leaderboard, most deaths first.
// GET /api/leaderboard/deaths?limit=20
func (h *PlayerHandler) TopDeaths(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= leaderboardTop {
		limit = l
	}
	players, err := h.store.TopDeaths(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{Rank: i + 1, Name: p.Name, Kills: p.Kills, Deaths: p.Deaths}
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// Activity returns the global kill/death counters and the sampled
// activity series.
// GET /api/activity
func (h *PlayerHandler) Activity(c *gin.Context) {
	ctx := c.Request.Context()
	kills, err := h.store.CounterValue(ctx, "killcount")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	deaths, _ := h.store.CounterValue(ctx, "deathcount")
	killSeries, _ := h.store.Series(ctx, "killdata")
	deathSeries, _ := h.store.Series(ctx, "deathdata")
	onlineSeries, _ := h.store.Series(ctx, "onlinecount")

	c.JSON(http.StatusOK, gin.H{
		"kills":        kills,
		"deaths":       deaths,
		"kill_series":  killSeries,
		"death_series": deathSeries,
		"online":       onlineSeries,
	})
}
