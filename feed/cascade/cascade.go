package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feralbyte/killwatch/audit"
	"github.com/feralbyte/killwatch/cache"
	"github.com/feralbyte/killwatch/notify"
	"github.com/feralbyte/killwatch/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusy is returned when another cascade operation holds the lock
// for the same device.
var ErrBusy = errors.New("cascade: operation already in progress for device")

const (
	lockTTL       = 2 * time.Minute
	lockKeyPrefix = "killwatch:cascade:lock:"
)

// BanRemote is the slice of the provider API the cascade needs.
type BanRemote interface {
	AddBan(ctx context.Context, serverID, name string) (bool, error)
	RemoveBan(ctx context.Context, serverID, name string) (bool, error)
}

// Policy implements device-level moderation: per-sighting evaluation of
// resolved device registrations, and bulk ban/unban across every
// registered server and every alias on a device.
type Policy struct {
	store  *store.Store
	remote BanRemote
	sink   notify.Sink
	audit  *audit.Service
	cache  cache.Cache
	logger *zap.Logger
}

// New creates a Policy.
func New(st *store.Store, remote BanRemote, sink notify.Sink, aud *audit.Service, c cache.Cache, logger *zap.Logger) *Policy {
	return &Policy{store: st, remote: remote, sink: sink, audit: aud, cache: c, logger: logger}
}

// HandleDeviceSeen evaluates one resolved device registration: the
// account name and device are already persisted by the caller. If the
// device is banned, only the currently observed name is banned on the
// observing server; known aliases are reported, not banned. On a clean
// device with aliases, an alert is raised instead.
func (p *Policy) HandleDeviceSeen(ctx context.Context, serverID, name, deviceID string) error {
	aliases, err := p.store.NamesByDevice(ctx, deviceID, name)
	if err != nil {
		return fmt.Errorf("cascade: aliases for device %s: %w", deviceID, err)
	}

	banned, err := p.store.IsDeviceBanned(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("cascade: ban check for device %s: %w", deviceID, err)
	}

	if banned {
		p.logger.Warn("banned device detected",
			zap.String("server", serverID),
			zap.String("player", name),
			zap.String("device", deviceID))

		changed, banErr := p.remote.AddBan(ctx, serverID, name)
		entry := audit.Entry{
			OpID:      uuid.NewString(),
			ServerID:  serverID,
			Name:      name,
			Action:    "ban",
			Automatic: true,
			Success:   banErr == nil,
			Detail:    map[string]interface{}{"device": deviceID, "changed": changed, "aliases": aliases},
		}
		if banErr != nil {
			entry.Error = banErr.Error()
			p.logger.Error("auto-ban failed",
				zap.String("server", serverID),
				zap.String("player", name),
				zap.Error(banErr))
		}
		p.audit.Record(entry)

		body := fmt.Sprintf("%s auto-banned on banned device %s", name, deviceID)
		if len(aliases) > 0 {
			body += "; known aliases: " + strings.Join(aliases, ", ")
		}
		return p.sink.Publish(ctx, notify.Notification{
			Kind:     notify.KindAltBanned,
			Severity: "alert",
			Title:    "Banned Device Detected & Auto-Banned",
			Body:     body,
			ServerID: serverID,
		})
	}

	if len(aliases) > 0 {
		return p.sink.Publish(ctx, notify.Notification{
			Kind:     notify.KindAltAlert,
			Severity: "warn",
			Title:    "Alt Account Detected",
			Body:     fmt.Sprintf("%s shares device %s with: %s", name, deviceID, strings.Join(aliases, ", ")),
			ServerID: serverID,
		})
	}
	return nil
}

// Result is the outcome of one remote ban-list mutation.
type Result struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Changed  bool   `json:"changed"`
	Error    string `json:"error,omitempty"`
}

// Report summarizes a bulk cascade operation.
type Report struct {
	OpID     string   `json:"op_id"`
	DeviceID string   `json:"device_id"`
	Names    []string `json:"names"`
	Results  []Result `json:"results"`
}

// resolveDevice maps a device id or player name to (device, names on
// the device). A name with no recorded device yields just that name.
func (p *Policy) resolveDevice(ctx context.Context, identifier string) (string, []string, error) {
	player, err := p.store.PlayerByName(ctx, identifier)
	if err == nil {
		if player.DeviceID == "" {
			return "", []string{player.Name}, nil
		}
		identifier = player.DeviceID
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", nil, err
	}

	names, err := p.store.NamesByDevice(ctx, identifier, "")
	if err != nil {
		return "", nil, err
	}
	return identifier, names, nil
}

// BanDevice bans a device across every registered server: the device is
// recorded as banned and every account seen on it is added to every
// server's ban list. The identifier may be a device id or a player
// name. Partial remote failures are collected, not fatal.
func (p *Policy) BanDevice(ctx context.Context, identifier string) (*Report, error) {
	deviceID, names, err := p.resolveDevice(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if deviceID == "" && len(names) == 0 {
		return nil, store.ErrNotFound
	}

	if deviceID != "" {
		ok, err := p.cache.SetNX(ctx, lockKeyPrefix+deviceID, "1", lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrBusy
		}
		defer func() {
			if err := p.cache.Del(context.Background(), lockKeyPrefix+deviceID); err != nil {
				p.logger.Warn("failed to release cascade lock", zap.Error(err))
			}
		}()

		originName := identifier
		if len(names) > 0 {
			originName = names[0]
		}
		if err := p.store.BanDevice(ctx, originName, deviceID); err != nil {
			return nil, err
		}
	}

	report := &Report{OpID: uuid.NewString(), DeviceID: deviceID, Names: names}
	servers, err := p.store.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for _, srv := range servers {
		for _, name := range names {
			changed, banErr := p.remote.AddBan(ctx, srv.ServerID, name)
			res := Result{ServerID: srv.ServerID, Name: name, Changed: changed}
			entry := audit.Entry{
				OpID:     report.OpID,
				ServerID: srv.ServerID,
				Name:     name,
				Action:   "ban",
				Success:  banErr == nil,
				Detail:   map[string]string{"device": deviceID},
			}
			if banErr != nil {
				res.Error = banErr.Error()
				entry.Error = banErr.Error()
			}
			p.audit.Record(entry)
			report.Results = append(report.Results, res)
		}
	}

	if err := p.sink.Publish(ctx, notify.Notification{
		Kind:     notify.KindModeration,
		Severity: "alert",
		Title:    "Device Banned",
		Body:     fmt.Sprintf("device %s banned; accounts: %s", deviceID, strings.Join(names, ", ")),
	}); err != nil {
		p.logger.Warn("failed to publish ban notification", zap.Error(err))
	}
	return report, nil
}

// UnbanDevice reverses BanDevice: the device ban is lifted and every
// account seen on the device is removed from every server's ban list.
func (p *Policy) UnbanDevice(ctx context.Context, identifier string) (*Report, error) {
	deviceID, names, err := p.resolveDevice(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if deviceID == "" && len(names) == 0 {
		return nil, store.ErrNotFound
	}

	if deviceID != "" {
		ok, err := p.cache.SetNX(ctx, lockKeyPrefix+deviceID, "1", lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrBusy
		}
		defer func() {
			if err := p.cache.Del(context.Background(), lockKeyPrefix+deviceID); err != nil {
				p.logger.Warn("failed to release cascade lock", zap.Error(err))
			}
		}()

		if err := p.store.UnbanDevice(ctx, deviceID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	report := &Report{OpID: uuid.NewString(), DeviceID: deviceID, Names: names}
	servers, err := p.store.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for _, srv := range servers {
		for _, name := range names {
			changed, unbanErr := p.remote.RemoveBan(ctx, srv.ServerID, name)
			res := Result{ServerID: srv.ServerID, Name: name, Changed: changed}
			entry := audit.Entry{
				OpID:     report.OpID,
				ServerID: srv.ServerID,
				Name:     name,
				Action:   "unban",
				Success:  unbanErr == nil,
				Detail:   map[string]string{"device": deviceID},
			}
			if unbanErr != nil {
				res.Error = unbanErr.Error()
				entry.Error = unbanErr.Error()
			}
			p.audit.Record(entry)
			report.Results = append(report.Results, res)
		}
	}

	if err := p.sink.Publish(ctx, notify.Notification{
		Kind:     notify.KindModeration,
		Severity: "info",
		Title:    "Device Unbanned",
		Body:     fmt.Sprintf("device %s unbanned; accounts: %s", deviceID, strings.Join(names, ", ")),
	}); err != nil {
		p.logger.Warn("failed to publish unban notification", zap.Error(err))
	}
	return report, nil
}
