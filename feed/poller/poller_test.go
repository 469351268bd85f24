package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/feralbyte/killwatch/audit"
	"github.com/feralbyte/killwatch/cache"
	"github.com/feralbyte/killwatch/feed/cascade"
	"github.com/feralbyte/killwatch/notify"
	"github.com/feralbyte/killwatch/remote"
	"github.com/feralbyte/killwatch/store"
	"github.com/feralbyte/killwatch/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLogRemote struct {
	mu      sync.Mutex
	adm     map[string]string
	rpt     map[string]string
	block   chan struct{} // when set, FetchLatestLog waits on it
	fetches int
}

func (f *fakeLogRemote) FetchLatestLog(_ context.Context, serverID string, stream remote.Stream) ([]byte, error) {
	f.mu.Lock()
	block := f.block
	f.fetches++
	var body string
	var ok bool
	if stream == remote.StreamAdmin {
		body, ok = f.adm[serverID]
	} else {
		body, ok = f.rpt[serverID]
	}
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if !ok {
		return nil, remote.ErrNoLogFile
	}
	return []byte(body), nil
}

func (f *fakeLogRemote) MapName(_ context.Context, _ string) (string, error) {
	return "chernarus", nil
}

type fakeBanRemote struct {
	mu    sync.Mutex
	added []string
}

func (f *fakeBanRemote) AddBan(_ context.Context, serverID, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, serverID+"/"+name)
	return true, nil
}

func (f *fakeBanRemote) RemoveBan(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type captureSink struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (s *captureSink) Publish(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSink) byKind(kind string) []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Notification
	for _, n := range s.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	poller *Poller
	store  *store.Store
	cache  cache.Cache
	logs   *fakeLogRemote
	bans   *fakeBanRemote
	sink   *captureSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	st := store.New(db, zap.NewNop())
	aud := audit.New(db, zap.NewNop())
	t.Cleanup(func() { aud.Stop(context.Background()) })

	bans := &fakeBanRemote{}
	sink := &captureSink{}
	policy := cascade.New(st, bans, sink, aud, c, zap.NewNop())
	logs := &fakeLogRemote{adm: map[string]string{}, rpt: map[string]string{}}
	return &fixture{
		poller: New(st, logs, policy, sink, c, zap.NewNop()),
		store:  st,
		cache:  c,
		logs:   logs,
		bans:   bans,
		sink:   sink,
	}
}

const admHeader = "AdminLog started on 2026-01-04 at 13:00:00\n"

func TestWarmupSuppressesNotificationsButUpdatesStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	kill := `14:12:30 | Player "Alice" (DEAD) (id=A pos=<4521.3, 10.1, 9800.7>) killed by Player "Bob" (id=B pos=<4650.0, 11.0, 9820.2>) with AKM from 120.5 meters` + "\n"
	f.logs.adm["srv-1"] = admHeader + kill

	require.True(t, f.poller.Warmup())
	f.poller.Tick(ctx)
	require.False(t, f.poller.Warmup())

	// Stats were written during warm-up.
	bob, err := f.store.PlayerByName(ctx, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 1, bob.Kills)

	// But nothing was announced.
	assert.Empty(t, f.sink.sent)

	// A new line after warm-up is announced.
	kill2 := `14:20:00 | Player "Carol" (DEAD) (id=C pos=<100.0, 5.0, 200.0>) killed by Player "Bob" (id=B pos=<120.0, 5.0, 210.0>) with AKM from 25.0 meters` + "\n"
	f.logs.adm["srv-1"] = admHeader + kill + kill2
	f.poller.Tick(ctx)

	kills := f.sink.byKind(notify.KindKill)
	require.Len(t, kills, 1)
	assert.Contains(t, kills[0].Body, "Bob killed Carol")
	assert.Contains(t, kills[0].Body, "AKM")
}

func TestWarmupWaitsForEverySource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	_, err = f.store.RegisterServer(ctx, "srv-2", "chernarus")
	require.NoError(t, err)

	// srv-2 has no log file yet; the pass is incomplete.
	f.logs.adm["srv-1"] = admHeader
	f.poller.Tick(ctx)
	assert.True(t, f.poller.Warmup())

	// The file appears with a historical backlog. It is absorbed on the
	// completing pass without being announced.
	backlog := `09:00:00 | Player "Old" (DEAD) (id=A pos=<1.0, 2.0, 3.0>) killed by Player "Ancient" (id=B pos=<4.0, 5.0, 6.0>) with AKM from 10.0 meters` + "\n"
	f.logs.adm["srv-2"] = admHeader + backlog
	f.poller.Tick(ctx)
	assert.False(t, f.poller.Warmup())
	assert.Empty(t, f.sink.byKind(notify.KindKill))

	// Only lines arriving after the complete pass go out live.
	fresh := `09:10:00 | Player "Old" (DEAD) (id=A pos=<1.0, 2.0, 3.0>) killed by Player "Ancient" (id=B pos=<4.0, 5.0, 6.0>) with SVD from 99.0 meters` + "\n"
	f.logs.adm["srv-2"] += fresh
	f.poller.Tick(ctx)

	kills := f.sink.byKind(notify.KindKill)
	require.Len(t, kills, 1)
	assert.Contains(t, kills[0].Body, "SVD")
}

func TestLinesAreProcessedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	death := `15:03:00 | Player "Sam" (DEAD) (id=X pos=<1.0, 2.0, 3.0>) bled out` + "\n"
	f.logs.adm["srv-1"] = admHeader + death

	f.poller.Tick(ctx)
	f.poller.Tick(ctx)
	f.poller.Tick(ctx)

	sam, err := f.store.PlayerByName(ctx, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 1, sam.Deaths)
}

func TestRotationResetsLineMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	death := `15:03:00 | Player "Sam" (DEAD) (id=X pos=<1.0, 2.0, 3.0>) bled out` + "\n"
	f.logs.adm["srv-1"] = admHeader + death
	f.poller.Tick(ctx)

	// The server restarts: a fresh file with a new header repeats the
	// same event line, which must count again.
	f.logs.adm["srv-1"] = "AdminLog started on 2026-01-05 at 09:00:00\n" + death
	f.poller.Tick(ctx)

	sam, err := f.store.PlayerByName(ctx, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 2, sam.Deaths)
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	block := make(chan struct{})
	f.logs.mu.Lock()
	f.logs.block = block
	f.logs.adm["srv-1"] = admHeader
	f.logs.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.poller.Tick(ctx)
		close(done)
	}()

	// Wait for the first tick to be inside a fetch.
	require.Eventually(t, func() bool {
		f.logs.mu.Lock()
		defer f.logs.mu.Unlock()
		return f.fetchesLocked() > 0
	}, time.Second, 5*time.Millisecond)

	// A second tick while the first is in flight returns immediately
	// without fetching anything more.
	before := f.fetches()
	f.poller.Tick(ctx)
	assert.Equal(t, before, f.fetches())

	close(block)
	<-done
}

func (f *fixture) fetches() int {
	f.logs.mu.Lock()
	defer f.logs.mu.Unlock()
	return f.logs.fetches
}

func (f *fixture) fetchesLocked() int {
	return f.logs.fetches
}

func TestDeviceCorrelationTriggersAutoBan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	const (
		uid    = "1F2D7D5BA6A2956E3D1343E44EBA4DD7941DD562"
		device = "VUZwoETj2mkhZSZuUxOg5T8jwr0TrB4R_pt4klUoRio="
	)
	require.NoError(t, f.store.BanDevice(ctx, "OldCheater", device))

	f.logs.rpt["srv-1"] = "[StateMachine]: Player Dubz966 (dpnid 26602006 uid " + uid + ") Entering\n" +
		"[MAM] :: [NetworkServer::RegisterMAMData] :: device: " + device + " | account: " + uid + " | time: 100\n"
	f.logs.adm["srv-1"] = admHeader

	f.poller.Tick(ctx)

	// The observed account was auto-banned on the observing server.
	f.bans.mu.Lock()
	added := append([]string(nil), f.bans.added...)
	f.bans.mu.Unlock()
	assert.Equal(t, []string{"srv-1/Dubz966"}, added)

	// The correlation was persisted.
	player, err := f.store.PlayerByName(ctx, "Dubz966")
	require.NoError(t, err)
	assert.Equal(t, device, player.DeviceID)
	assert.Equal(t, uid, player.AccountID)

	// The pair is consumed; a second pass does not re-ban.
	f.poller.Tick(ctx)
	f.bans.mu.Lock()
	assert.Len(t, f.bans.added, 1)
	f.bans.mu.Unlock()
}

func TestAltAlertAfterWarmup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	const (
		uid    = "383C4A0D1E702B6598B37338975EA3DB61DBC6D2"
		device = "nwQBlewhhiL1eDq6FnyQ8z5-1IHvtOEcZfl32JItLhU="
	)
	require.NoError(t, f.store.SetDeviceAndAccount(ctx, "KnownAlt", device, "other-uid"))

	f.logs.rpt["srv-1"] = "[StateMachine]: Player Fresh (dpnid 111 uid " + uid + ") Entering\n" +
		"[MAM] :: [NetworkServer::CheckMAMData] :: device: " + device + " | account: " + uid + " | time: 5\n"
	f.logs.adm["srv-1"] = admHeader

	f.poller.Tick(ctx)

	alerts := f.sink.byKind(notify.KindAltAlert)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Body, "KnownAlt")
}

func TestForgetServerDropsLineMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	death := `15:03:00 | Player "Sam" (DEAD) (id=X pos=<1.0, 2.0, 3.0>) bled out` + "\n"
	f.logs.adm["srv-1"] = admHeader + death
	f.poller.Tick(ctx)

	f.poller.ForgetServer("srv-1")
	f.poller.Tick(ctx)

	sam, err := f.store.PlayerByName(ctx, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 2, sam.Deaths)
}

func TestScriptDisconnectIsLogged(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	st := store.New(db, zap.NewNop())
	aud := audit.New(db, zap.NewNop())
	t.Cleanup(func() { aud.Stop(context.Background()) })

	core, logs := observer.New(zap.DebugLevel)
	sink := &captureSink{}
	policy := cascade.New(st, &fakeBanRemote{}, sink, aud, c, zap.NewNop())
	rem := &fakeLogRemote{adm: map[string]string{}, rpt: map[string]string{}}
	p := New(st, rem, policy, sink, c, zap.New(core))

	_, err := st.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)
	rem.rpt["srv-1"] = "[Disconnect]: Finish script disconnect 26602006 (1F2D7D5BA6A2956E3D1343E44EBA4DD7941DD562)\n"
	rem.adm["srv-1"] = admHeader
	p.Tick(ctx)

	entries := logs.FilterMessage("script disconnect").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "1F2D7D5BA6A2956E3D1343E44EBA4DD7941DD562", entries[0].ContextMap()["account"])
}

func TestHeatmapSummaryFromPositionSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	f.logs.adm["srv-1"] = admHeader
	f.poller.Tick(ctx)

	f.logs.adm["srv-1"] = admHeader +
		"16:00:00 | ##### PlayerList log: 2 players\n" +
		`16:00:00 | Player "Bob" (id=A pos=<6700.0, 10.0, 2650.0>)` + "\n" +
		`16:00:00 | Player "Ann" (id=B pos=<6710.0, 10.0, 2640.0>)` + "\n" +
		"16:00:00 | #####\n"
	f.poller.Tick(ctx)

	summaries := f.sink.byKind(notify.KindHeatmap)
	require.Len(t, summaries, 1)
	// Both positions resolve to the same named location.
	assert.Contains(t, summaries[0].Body, "2 players across 1 locations")
}

func TestOnlineCountCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.RegisterServer(ctx, "srv-1", "chernarus")
	require.NoError(t, err)

	f.logs.adm["srv-1"] = admHeader +
		"16:00:00 | ##### PlayerList log: 3 players\n" +
		`16:00:00 | Player "Bob" (id=ABC pos=<4521.3, 10.1, 9800.7>)` + "\n" +
		"16:00:00 | #####\n"

	f.poller.Tick(ctx)

	// The live count is cached even during warm-up.
	online, err := f.cache.Get(ctx, KeyOnlinePrefix+"srv-1")
	require.NoError(t, err)
	assert.Equal(t, "3", online)

	// Series samples are recorded from the very first pass; warm-up only
	// quiets notifications.
	series, err := f.store.Series(ctx, "onlinecount")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "3", series[0])

	f.logs.adm["srv-1"] += "16:05:00 | ##### PlayerList log: 4 players\n"
	f.poller.Tick(ctx)

	series, err = f.store.Series(ctx, "onlinecount")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "4", series[1])
}
