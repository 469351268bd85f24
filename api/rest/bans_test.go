package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/feralbyte/killwatch/api/rest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBanRouter(e *env) *gin.Engine {
	h := rest.NewBanHandler(e.store, e.policy, zap.NewNop())
	r := gin.New()
	r.GET("/api/admin/bans", h.List)
	r.POST("/api/admin/bans", h.Ban)
	r.DELETE("/api/admin/bans/:id", h.Unban)
	return r
}

func TestBanDeviceEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	require.NoError(t, e.store.SetDeviceAndAccount(ctx, "Cheater", "dev-1", "acc-1"))
	require.NoError(t, e.store.SetDeviceAndAccount(ctx, "CheaterAlt", "dev-1", "acc-2"))

	r := newBanRouter(e)
	w := doJSON(r, http.MethodPost, "/api/admin/bans", `{"identifier":"Cheater"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		DeviceID string   `json:"device_id"`
		Names    []string `json:"names"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "dev-1", report.DeviceID)
	assert.ElementsMatch(t, []string{"Cheater", "CheaterAlt"}, report.Names)
	assert.ElementsMatch(t, []string{"srv-1/Cheater", "srv-1/CheaterAlt"}, e.remote.added)

	banned, err := e.store.IsDeviceBanned(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, banned)

	// The ban shows up in the list.
	w = doJSON(r, http.MethodGet, "/api/admin/bans", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
}

func TestBanMissingIdentifier(t *testing.T) {
	e := newEnv(t)
	r := newBanRouter(e)
	w := doJSON(r, http.MethodPost, "/api/admin/bans", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnbanDeviceEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	require.NoError(t, e.store.SetDeviceAndAccount(ctx, "Cheater", "dev-1", "acc-1"))
	require.NoError(t, e.store.BanDevice(ctx, "Cheater", "dev-1"))

	r := newBanRouter(e)
	w := doJSON(r, http.MethodDelete, "/api/admin/bans/dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"srv-1/Cheater"}, e.remote.removed)

	banned, err := e.store.IsDeviceBanned(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, banned)
}
