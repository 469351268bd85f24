package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/feralbyte/killwatch/cache"
	"github.com/feralbyte/killwatch/feed/cascade"
	"github.com/feralbyte/killwatch/feed/classify"
	"github.com/feralbyte/killwatch/feed/dedup"
	"github.com/feralbyte/killwatch/feed/ident"
	"github.com/feralbyte/killwatch/model"
	"github.com/feralbyte/killwatch/notify"
	"github.com/feralbyte/killwatch/remote"
	"github.com/feralbyte/killwatch/store"
	"github.com/feralbyte/killwatch/worldmap"
	"go.uber.org/zap"
)

// Cache keys.
const (
	KeyOnlinePrefix    = "killwatch:online:"
	KeyKillLeaderboard = "killwatch:leaderboard:kills"
)

// LogRemote is the slice of the provider API the poller needs.
type LogRemote interface {
	FetchLatestLog(ctx context.Context, serverID string, stream remote.Stream) ([]byte, error)
	MapName(ctx context.Context, serverID string) (string, error)
}

// Poller drives one polling pass over every registered server: fetch
// both log streams, classify new lines, update stats and fire the
// downstream policies. The first complete pass is a warm-up: state is
// built and persisted but event notifications stay quiet, so a restart
// does not replay the backlog at subscribers.
type Poller struct {
	store   *store.Store
	remote  LogRemote
	policy  *cascade.Policy
	sink    notify.Sink
	cache   cache.Cache
	tracker *dedup.Tracker
	logger  *zap.Logger

	mu          sync.Mutex
	correlators map[string]*ident.Correlator
	admins      map[string]*classify.AdminClassifier
	script      *classify.ScriptClassifier

	warmup      atomic.Bool
	tickRunning atomic.Bool
}

// New creates a Poller in warm-up state.
func New(st *store.Store, rem LogRemote, policy *cascade.Policy, sink notify.Sink, c cache.Cache, logger *zap.Logger) *Poller {
	p := &Poller{
		store:       st,
		remote:      rem,
		policy:      policy,
		sink:        sink,
		cache:       c,
		tracker:     dedup.New(),
		logger:      logger,
		correlators: make(map[string]*ident.Correlator),
		admins:      make(map[string]*classify.AdminClassifier),
		script:      classify.NewScript(),
	}
	p.warmup.Store(true)
	return p
}

// Warmup reports whether the first complete pass is still pending.
func (p *Poller) Warmup() bool {
	return p.warmup.Load()
}

func (p *Poller) correlator(serverID string) *ident.Correlator {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.correlators[serverID]
	if !ok {
		c = ident.New(p.logger)
		p.correlators[serverID] = c
	}
	return c
}

func (p *Poller) adminClassifier(serverID string) *classify.AdminClassifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.admins[serverID]
	if !ok {
		a = classify.NewAdmin()
		p.admins[serverID] = a
	}
	return a
}

type tickCounters struct {
	kills  int64
	deaths int64
	online int64
}

// Tick runs one polling pass over all registered servers concurrently.
// If the previous pass is still running the tick is skipped whole; a
// slow provider must not stack passes.
func (p *Poller) Tick(ctx context.Context) {
	if !p.tickRunning.CompareAndSwap(false, true) {
		p.logger.Warn("previous poll still running, skipping tick")
		return
	}
	defer p.tickRunning.Store(false)

	servers, err := p.store.ListServers(ctx)
	if err != nil {
		p.logger.Error("failed to list servers", zap.Error(err))
		return
	}
	if len(servers) == 0 {
		p.logger.Debug("no servers registered")
		return
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		total        tickCounters
		allCompleted = true
	)
	for _, srv := range servers {
		wg.Add(1)
		go func(srv model.GameServer) {
			defer wg.Done()
			completed := false
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("server poll panicked",
						zap.String("server", srv.ServerID),
						zap.Any("recover", r))
				}
				if !completed {
					mu.Lock()
					allCompleted = false
					mu.Unlock()
				}
			}()
			counts, ok := p.pollServer(ctx, srv)
			completed = ok
			mu.Lock()
			total.kills += counts.kills
			total.deaths += counts.deaths
			total.online += counts.online
			mu.Unlock()
		}(srv)
	}
	wg.Wait()

	p.recordActivity(ctx, total)

	// Warm-up ends only once every registered source has finished a full
	// pass. A server whose log file has not appeared yet keeps the gate
	// closed, so its backlog is absorbed silently when the file shows up.
	if allCompleted && p.warmup.CompareAndSwap(true, false) {
		p.logger.Info("warm-up pass complete, notifications enabled")
	}
}

// recordActivity persists the tick's aggregates. Warm-up does not gate
// this path: stats and series always mutate, only outward notifications
// stay quiet.
func (p *Poller) recordActivity(ctx context.Context, total tickCounters) {
	if total.kills > 0 || total.deaths > 0 {
		if err := p.store.IncrCounter(ctx, "killcount", total.kills); err != nil {
			p.logger.Warn("failed to bump kill counter", zap.Error(err))
		}
		if err := p.store.IncrCounter(ctx, "deathcount", total.deaths); err != nil {
			p.logger.Warn("failed to bump death counter", zap.Error(err))
		}
	}
	for name, v := range map[string]int64{
		"killdata":    total.kills,
		"deathdata":   total.deaths,
		"onlinecount": total.online,
	} {
		if err := p.store.AppendSeries(ctx, name, fmt.Sprintf("%d", v)); err != nil {
			p.logger.Warn("failed to append series", zap.String("series", name), zap.Error(err))
		}
	}
}

// pollServer fetches and processes both streams for one server. The
// script stream goes first so identity mappings exist before the admin
// stream's events are evaluated. The second return reports whether the
// server completed a full pass; a missing or failed admin stream leaves
// the pass incomplete.
func (p *Poller) pollServer(ctx context.Context, srv model.GameServer) (tickCounters, bool) {
	if body, err := p.remote.FetchLatestLog(ctx, srv.ServerID, remote.StreamScript); err != nil {
		p.logFetchError(srv.ServerID, "RPT", err)
	} else {
		p.processScript(ctx, srv, string(body))
	}

	body, err := p.remote.FetchLatestLog(ctx, srv.ServerID, remote.StreamAdmin)
	if err != nil {
		p.logFetchError(srv.ServerID, "ADM", err)
		return tickCounters{}, false
	}
	return p.processAdmin(ctx, srv, string(body)), true
}

func (p *Poller) logFetchError(serverID, stream string, err error) {
	if errors.Is(err, remote.ErrNoLogFile) {
		p.logger.Warn("no log file for server, skipping",
			zap.String("server", serverID), zap.String("stream", stream))
		return
	}
	p.logger.Error("log fetch failed",
		zap.String("server", serverID), zap.String("stream", stream), zap.Error(err))
}

// processScript walks the script stream building identity mappings and
// evaluating device registrations. Mapping lines are idempotent, so the
// stream is re-read whole each pass; only device pairs are deduped.
func (p *Poller) processScript(ctx context.Context, srv model.GameServer, content string) {
	corr := p.correlator(srv.ServerID)

	for _, line := range strings.Split(content, "\n") {
		ev := p.script.Classify(line)
		if ev == nil {
			continue
		}
		switch ev.Kind {
		case classify.KindSessionState:
			corr.ObserveSession(ev.Player, ev.AccountID)
			p.ensurePlayer(ctx, ev.Player)

		case classify.KindDebugSave:
			corr.ObserveDebugSave(ev.Player, ev.SessionID)
			p.ensurePlayer(ctx, ev.Player)

		case classify.KindDebugExit:
			corr.ObserveDebugExit(ev.AccountID, ev.SessionID)

		case classify.KindScriptDisconnect:
			p.logger.Debug("script disconnect",
				zap.String("server", srv.ServerID),
				zap.String("account", ev.AccountID))

		case classify.KindDeviceRegistration:
			name, dup := corr.ResolveDevice(ev.DeviceID, ev.AccountID)
			if dup || name == "" {
				continue
			}
			if err := p.store.SetDeviceAndAccount(ctx, name, ev.DeviceID, ev.AccountID); err != nil {
				p.logger.Error("failed to persist device correlation",
					zap.String("player", name), zap.Error(err))
				continue
			}
			if err := p.policy.HandleDeviceSeen(ctx, srv.ServerID, name, ev.DeviceID); err != nil {
				p.logger.Error("device policy evaluation failed",
					zap.String("player", name), zap.Error(err))
			}
		}
	}
}

// processAdmin walks the admin stream: dedup, rotation detection, event
// classification and stat updates.
func (p *Poller) processAdmin(ctx context.Context, srv model.GameServer, content string) tickCounters {
	source := srv.ServerID + ":ADM"
	tokenCount := dedup.CountToken(content)
	admin := p.adminClassifier(srv.ServerID)
	admin.Reset()
	corr := p.correlator(srv.ServerID)

	var counts tickCounters
	var positions [][2]float64
	onlineSeen := false

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if p.tracker.Seen(source, line) {
			continue
		}
		if p.tracker.MaybeRotate(source, line, tokenCount) {
			p.logger.Info("log rotation detected, state reset",
				zap.String("server", srv.ServerID))
		}
		p.tracker.Mark(source, line)

		ev := admin.Classify(line)
		if ev == nil {
			continue
		}

		switch ev.Kind {
		case classify.KindSessionState:
			corr.ObserveSession(ev.Player, ev.AccountID)

		case classify.KindConnect:
			p.ensurePlayer(ctx, ev.Player)
			if ev.AccountID != "" {
				corr.ObserveSession(ev.Player, ev.AccountID)
			}
			p.notifyEvent(ctx, srv.ServerID, notify.KindConnect, "Player Connected",
				fmt.Sprintf("%s connected at %s", ev.Player, ev.Timestamp))

		case classify.KindDisconnect:
			p.notifyEvent(ctx, srv.ServerID, notify.KindDisconnect, "Player Disconnected",
				fmt.Sprintf("%s disconnected at %s", ev.Player, ev.Timestamp))

		case classify.KindSuicide:
			counts.deaths++
			p.recordDeath(ctx, ev.Victim)
			p.notifyEvent(ctx, srv.ServerID, notify.KindDeath, "Suicide",
				fmt.Sprintf("%s committed suicide at %s", ev.Victim, ev.Timestamp))

		case classify.KindExplosion:
			counts.deaths++
			counts.kills++
			p.recordDeath(ctx, ev.Victim)
			p.notifyEvent(ctx, srv.ServerID, notify.KindDeath, "Exploded",
				fmt.Sprintf("%s died from explosion (%s) at %s", ev.Victim, ev.ExplosionType, ev.Timestamp))

		case classify.KindBleedOut:
			counts.deaths++
			p.recordDeath(ctx, ev.Victim)
			p.notifyEvent(ctx, srv.ServerID, notify.KindDeath, "Bled Out",
				fmt.Sprintf("%s bled out at %s", ev.Victim, ev.Timestamp))

		case classify.KindWolfKill:
			counts.deaths++
			p.recordDeath(ctx, ev.Victim)
			p.notifyEvent(ctx, srv.ServerID, notify.KindDeath, "Wolf Kill",
				fmt.Sprintf("%s was killed by a Wolf at %s", ev.Victim, ev.Timestamp))

		case classify.KindBearKill:
			counts.deaths++
			p.recordDeath(ctx, ev.Victim)
			p.notifyEvent(ctx, srv.ServerID, notify.KindDeath, "Bear Kill",
				fmt.Sprintf("%s was killed by a Bear at %s", ev.Victim, ev.Timestamp))

		case classify.KindFallDeath:
			counts.deaths++
			p.recordDeath(ctx, ev.Victim)
			p.notifyEvent(ctx, srv.ServerID, notify.KindDeath, "Fall Death",
				fmt.Sprintf("%s fell to their death at %s", ev.Victim, ev.Timestamp))

		case classify.KindPvPKill:
			counts.kills++
			counts.deaths++
			p.handlePvPKill(ctx, srv, ev)

		case classify.KindGenericDeath:
			counts.deaths++
			p.recordDeath(ctx, ev.Victim)
			p.notifyEvent(ctx, srv.ServerID, notify.KindDeath, "Died",
				fmt.Sprintf("%s died at %s", ev.Victim, ev.Timestamp))

		case classify.KindPositionSnapshot:
			if ev.X != 0 || ev.Z != 0 {
				positions = append(positions, [2]float64{ev.X, ev.Z})
			}

		case classify.KindPlayerListStart, classify.KindOnlineCount:
			if ev.Online > 0 && !onlineSeen {
				onlineSeen = true
				counts.online = int64(ev.Online)
				key := KeyOnlinePrefix + srv.ServerID
				if err := p.cache.Set(ctx, key, fmt.Sprintf("%d", ev.Online), 0); err != nil {
					p.logger.Warn("failed to cache online count", zap.Error(err))
				}
			}
		}
	}

	if len(positions) > 0 {
		if counts.online == 0 {
			counts.online = int64(len(positions))
		}
		p.notifyEvent(ctx, srv.ServerID, notify.KindHeatmap, "Player Positions",
			fmt.Sprintf("%d players across %d locations", len(positions), distinctLocations(srv.Map, positions)))
	}
	return counts
}

// distinctLocations counts how many separate places the snapshot
// positions fall into: named locations where the map has them, 500m
// grid cells elsewhere.
func distinctLocations(mapName string, positions [][2]float64) int {
	seen := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		if worldmap.CanUseLocations(mapName) {
			if loc, _, ok := worldmap.ClosestLocation(mapName, pos[0], pos[1]); ok {
				seen[loc] = struct{}{}
				continue
			}
		}
		seen[fmt.Sprintf("%d:%d", int(pos[0])/500, int(pos[1])/500)] = struct{}{}
	}
	return len(seen)
}

// ForgetServer drops all in-memory pipeline state for an unregistered
// server: its correlator, classifier section state and line memory.
func (p *Poller) ForgetServer(serverID string) {
	p.mu.Lock()
	delete(p.correlators, serverID)
	delete(p.admins, serverID)
	p.mu.Unlock()
	p.tracker.Reset(serverID + ":ADM")
}

func (p *Poller) handlePvPKill(ctx context.Context, srv model.GameServer, ev *classify.Event) {
	if ev.Killer == "" || ev.Victim == "" {
		p.logger.Warn("pvp kill with missing participant",
			zap.String("server", srv.ServerID),
			zap.String("killer", ev.Killer),
			zap.String("victim", ev.Victim))
		return
	}
	if err := p.store.RecordKill(ctx, ev.Killer); err != nil {
		p.logger.Error("failed to record kill", zap.String("player", ev.Killer), zap.Error(err))
	}
	p.recordDeath(ctx, ev.Victim)

	if killer, err := p.store.PlayerByName(ctx, ev.Killer); err == nil {
		if err := p.cache.ZAdd(ctx, KeyKillLeaderboard, float64(killer.Kills), killer.Name); err != nil {
			p.logger.Warn("failed to update kill leaderboard", zap.Error(err))
		}
	}

	body := fmt.Sprintf("%s killed %s with %s (%.1fm)", ev.Killer, ev.Victim, ev.Weapon, ev.Distance)
	if ev.BodyPart != "" {
		body += " hit " + ev.BodyPart
	}
	if worldmap.CanUseLocations(srv.Map) && (ev.X != 0 || ev.Z != 0) {
		if loc, dist, ok := worldmap.ClosestLocation(srv.Map, ev.X, ev.Z); ok {
			body += fmt.Sprintf(" near %s (%.0fm)", loc, dist)
		}
	}
	p.notifyEvent(ctx, srv.ServerID, notify.KindKill, "PvP Kill | "+ev.Timestamp, body)
}

func (p *Poller) ensurePlayer(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if _, err := p.store.EnsurePlayer(ctx, name); err != nil {
		p.logger.Error("failed to ensure player", zap.String("player", name), zap.Error(err))
	}
}

func (p *Poller) recordDeath(ctx context.Context, victim string) {
	if victim == "" {
		return
	}
	if err := p.store.RecordDeath(ctx, victim); err != nil {
		p.logger.Error("failed to record death", zap.String("player", victim), zap.Error(err))
	}
}

// notifyEvent publishes an event notification unless the warm-up pass
// is still running. Stats are always updated; only the outward sends
// are suppressed.
func (p *Poller) notifyEvent(ctx context.Context, serverID, kind, title, body string) {
	if p.warmup.Load() {
		return
	}
	if err := p.sink.Publish(ctx, notify.Notification{
		Kind:     kind,
		Title:    title,
		Body:     body,
		ServerID: serverID,
	}); err != nil {
		p.logger.Warn("failed to publish event notification", zap.Error(err))
	}
}
