package cascade

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/feralbyte/killwatch/audit"
	"github.com/feralbyte/killwatch/model"
	"github.com/feralbyte/killwatch/notify"
	"github.com/feralbyte/killwatch/store"
	"github.com/feralbyte/killwatch/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeRemote struct {
	mu      sync.Mutex
	added   []string // "server/name"
	removed []string
	fail    bool
}

func (f *fakeRemote) AddBan(_ context.Context, serverID, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errors.New("provider unavailable")
	}
	f.added = append(f.added, serverID+"/"+name)
	return true, nil
}

func (f *fakeRemote) RemoveBan(_ context.Context, serverID, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errors.New("provider unavailable")
	}
	f.removed = append(f.removed, serverID+"/"+name)
	return true, nil
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingSink) Publish(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func newTestPolicy(t *testing.T) (*Policy, *store.Store, *fakeRemote, *recordingSink, *audit.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	st := store.New(db, zap.NewNop())
	remote := &fakeRemote{}
	sink := &recordingSink{}
	aud := audit.New(db, zap.NewNop())
	t.Cleanup(func() { aud.Stop(context.Background()) })
	return New(st, remote, sink, aud, c, zap.NewNop()), st, remote, sink, aud, db
}

func TestHandleDeviceSeenBansOnlyObservedName(t *testing.T) {
	ctx := context.Background()
	p, st, remote, sink, _, _ := newTestPolicy(t)

	// Three accounts share the device; the device itself is banned.
	require.NoError(t, st.SetDeviceAndAccount(ctx, "N1", "dev-x", "a1"))
	require.NoError(t, st.SetDeviceAndAccount(ctx, "N2", "dev-x", "a2"))
	require.NoError(t, st.SetDeviceAndAccount(ctx, "N3", "dev-x", "a3"))
	require.NoError(t, st.BanDevice(ctx, "N1", "dev-x"))

	require.NoError(t, p.HandleDeviceSeen(ctx, "srv-1", "N2", "dev-x"))

	// Only the currently observed account is banned.
	assert.Equal(t, []string{"srv-1/N2"}, remote.added)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, notify.KindAltBanned, sink.sent[0].Kind)
	assert.Contains(t, sink.sent[0].Body, "N1")
	assert.Contains(t, sink.sent[0].Body, "N3")
}

func TestHandleDeviceSeenAltAlertOnCleanDevice(t *testing.T) {
	ctx := context.Background()
	p, st, remote, sink, _, _ := newTestPolicy(t)

	require.NoError(t, st.SetDeviceAndAccount(ctx, "Main", "dev-y", "a1"))
	require.NoError(t, st.SetDeviceAndAccount(ctx, "Alt", "dev-y", "a2"))

	require.NoError(t, p.HandleDeviceSeen(ctx, "srv-1", "Main", "dev-y"))

	assert.Empty(t, remote.added)
	require.Len(t, sink.sent, 1)
	assert.Equal(t, notify.KindAltAlert, sink.sent[0].Kind)
	assert.Contains(t, sink.sent[0].Body, "Alt")
}

func TestHandleDeviceSeenQuietForSingleCleanAccount(t *testing.T) {
	ctx := context.Background()
	p, st, remote, sink, _, _ := newTestPolicy(t)

	require.NoError(t, st.SetDeviceAndAccount(ctx, "Solo", "dev-z", "a1"))
	require.NoError(t, p.HandleDeviceSeen(ctx, "srv-1", "Solo", "dev-z"))

	assert.Empty(t, remote.added)
	assert.Empty(t, sink.sent)
}

func TestBanDeviceCascadesAllServersAndAliases(t *testing.T) {
	ctx := context.Background()
	p, st, remote, _, aud, db := newTestPolicy(t)

	_, err := st.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	_, err = st.RegisterServer(ctx, "srv-2", "livonia")
	require.NoError(t, err)
	require.NoError(t, st.SetDeviceAndAccount(ctx, "N1", "dev-x", "a1"))
	require.NoError(t, st.SetDeviceAndAccount(ctx, "N2", "dev-x", "a2"))

	report, err := p.BanDevice(ctx, "dev-x")
	require.NoError(t, err)
	assert.Equal(t, "dev-x", report.DeviceID)
	assert.Len(t, report.Results, 4) // 2 servers x 2 names
	assert.ElementsMatch(t, []string{"srv-1/N1", "srv-1/N2", "srv-2/N1", "srv-2/N2"}, remote.added)

	banned, err := st.IsDeviceBanned(ctx, "dev-x")
	require.NoError(t, err)
	assert.True(t, banned)

	// Every mutation is recorded under one operation id.
	aud.Stop(ctx)
	var logs []model.ModerationLog
	require.NoError(t, db.Where("op_id = ?", report.OpID).Find(&logs).Error)
	assert.Len(t, logs, 4)
}

func TestBanDeviceByPlayerName(t *testing.T) {
	ctx := context.Background()
	p, st, remote, _, _, _ := newTestPolicy(t)

	_, err := st.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	require.NoError(t, st.SetDeviceAndAccount(ctx, "Main", "dev-q", "a1"))
	require.NoError(t, st.SetDeviceAndAccount(ctx, "Alt", "dev-q", "a2"))

	report, err := p.BanDevice(ctx, "Main")
	require.NoError(t, err)
	assert.Equal(t, "dev-q", report.DeviceID)
	assert.ElementsMatch(t, []string{"srv-1/Main", "srv-1/Alt"}, remote.added)
}

func TestBanDeviceCollectsPartialFailures(t *testing.T) {
	ctx := context.Background()
	p, st, remote, _, _, _ := newTestPolicy(t)
	remote.fail = true

	_, err := st.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	require.NoError(t, st.SetDeviceAndAccount(ctx, "N1", "dev-x", "a1"))

	report, err := p.BanDevice(ctx, "dev-x")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.NotEmpty(t, report.Results[0].Error)
	assert.False(t, report.Results[0].Changed)
}

func TestUnbanDeviceCascades(t *testing.T) {
	ctx := context.Background()
	p, st, remote, _, _, _ := newTestPolicy(t)

	_, err := st.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	require.NoError(t, st.SetDeviceAndAccount(ctx, "N1", "dev-x", "a1"))
	require.NoError(t, st.BanDevice(ctx, "N1", "dev-x"))

	report, err := p.UnbanDevice(ctx, "dev-x")
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-1/N1"}, remote.removed)
	assert.Len(t, report.Results, 1)

	banned, err := st.IsDeviceBanned(ctx, "dev-x")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBanDeviceUnseenDeviceIsPreemptive(t *testing.T) {
	ctx := context.Background()
	p, st, remote, _, _, _ := newTestPolicy(t)

	// A device with no recorded sightings can still be banned ahead of
	// time; the cascade then has no names to push remotely.
	report, err := p.BanDevice(ctx, "dev-unseen")
	require.NoError(t, err)
	assert.Empty(t, report.Names)
	assert.Empty(t, remote.added)

	banned, err := st.IsDeviceBanned(ctx, "dev-unseen")
	require.NoError(t, err)
	assert.True(t, banned)
}
