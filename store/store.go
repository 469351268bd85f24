package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/feralbyte/killwatch/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps all database access for player stats, device bans,
// registered servers and activity tracking.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a Store.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// ---- players ----

// EnsurePlayer returns the stat row for name, creating it on first
// sighting. Lookup is case-insensitive; the first-seen spelling of the
// name is preserved.
func (s *Store) EnsurePlayer(ctx context.Context, name string) (*model.PlayerStat, error) {
	lower := strings.ToLower(name)
	var p model.PlayerStat
	err := s.db.WithContext(ctx).Where("name_lower = ?", lower).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p = model.PlayerStat{
		Name:       name,
		NameLower:  lower,
		AliveSince: time.Now().Unix(),
	}
	// A concurrent insert of the same name loses the race on the unique
	// index; fall back to reading the winner's row.
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		if ferr := s.db.WithContext(ctx).Where("name_lower = ?", lower).First(&p).Error; ferr == nil {
			return &p, nil
		}
		return nil, err
	}
	return &p, nil
}

// PlayerByName returns the stat row for name, or ErrNotFound.
func (s *Store) PlayerByName(ctx context.Context, name string) (*model.PlayerStat, error) {
	var p model.PlayerStat
	err := s.db.WithContext(ctx).Where("name_lower = ?", strings.ToLower(name)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordKill credits a kill to name: kills and the kill streak go up,
// the death streak resets.
func (s *Store) RecordKill(ctx context.Context, name string) error {
	p, err := s.EnsurePlayer(ctx, name)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.PlayerStat{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"kills":        gorm.Expr("kills + 1"),
			"kill_streak":  gorm.Expr("kill_streak + 1"),
			"death_streak": 0,
		}).Error
}

// RecordDeath charges a death to name: deaths and the death streak go
// up, the kill streak resets, and the alive-since clock restarts.
func (s *Store) RecordDeath(ctx context.Context, name string) error {
	p, err := s.EnsurePlayer(ctx, name)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.PlayerStat{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"deaths":       gorm.Expr("deaths + 1"),
			"death_streak": gorm.Expr("death_streak + 1"),
			"kill_streak":  0,
			"alive_since":  time.Now().Unix(),
		}).Error
}

// SetDeviceAndAccount stamps the device and account identifiers onto a
// player's stat row once a session has been correlated.
func (s *Store) SetDeviceAndAccount(ctx context.Context, name, deviceID, accountID string) error {
	p, err := s.EnsurePlayer(ctx, name)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.PlayerStat{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"device_id":  deviceID,
			"account_id": accountID,
		}).Error
}

// NamesByDevice returns the display names of every account seen on the
// given device, excluding the one passed as current.
func (s *Store) NamesByDevice(ctx context.Context, deviceID, current string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&model.PlayerStat{}).
		Where("device_id = ? AND name_lower <> ?", deviceID, strings.ToLower(current)).
		Pluck("name", &names).Error
	return names, err
}

// TopKills returns the limit highest-kill players, most kills first.
func (s *Store) TopKills(ctx context.Context, limit int) ([]model.PlayerStat, error) {
	var players []model.PlayerStat
	err := s.db.WithContext(ctx).
		Order("kills DESC").Limit(limit).Find(&players).Error
	return players, err
}

// TopDeaths returns the limit highest-death players, most deaths first.
func (s *Store) TopDeaths(ctx context.Context, limit int) ([]model.PlayerStat, error) {
	var players []model.PlayerStat
	err := s.db.WithContext(ctx).
		Order("deaths DESC").Limit(limit).Find(&players).Error
	return players, err
}

// KillRank returns the 1-based leaderboard position of name: one more
// than the number of players with strictly more kills.
func (s *Store) KillRank(ctx context.Context, name string) (int64, error) {
	p, err := s.PlayerByName(ctx, name)
	if err != nil {
		return 0, err
	}
	var ahead int64
	err = s.db.WithContext(ctx).Model(&model.PlayerStat{}).
		Where("kills > ?", p.Kills).Count(&ahead).Error
	return ahead + 1, err
}

// ---- device bans ----

// BanDevice records a device ban. Banning an already banned device is a
// no-op.
func (s *Store) BanDevice(ctx context.Context, name, deviceID string) error {
	ban := model.DeviceBan{Name: name, DeviceID: deviceID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ban).Error
}

// UnbanDevice removes a device ban. Returns ErrNotFound if the device
// was not banned.
func (s *Store) UnbanDevice(ctx context.Context, deviceID string) error {
	res := s.db.WithContext(ctx).Where("device_id = ?", deviceID).Delete(&model.DeviceBan{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsDeviceBanned reports whether the device is on the ban list.
func (s *Store) IsDeviceBanned(ctx context.Context, deviceID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.DeviceBan{}).
		Where("device_id = ?", deviceID).Count(&count).Error
	return count > 0, err
}

// ListDeviceBans returns all device bans, most recent first.
func (s *Store) ListDeviceBans(ctx context.Context) ([]model.DeviceBan, error) {
	var bans []model.DeviceBan
	err := s.db.WithContext(ctx).Order("banned_at DESC").Find(&bans).Error
	return bans, err
}

// ---- servers ----

// RegisterServer adds a game server to the polling set.
func (s *Store) RegisterServer(ctx context.Context, serverID, mapName string) (*model.GameServer, error) {
	srv := model.GameServer{ServerID: serverID, Map: mapName}
	if err := s.db.WithContext(ctx).Create(&srv).Error; err != nil {
		return nil, err
	}
	return &srv, nil
}

// RemoveServer deletes a game server registration.
func (s *Store) RemoveServer(ctx context.Context, serverID string) error {
	res := s.db.WithContext(ctx).Where("server_id = ?", serverID).Delete(&model.GameServer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListServers returns all registered game servers.
func (s *Store) ListServers(ctx context.Context) ([]model.GameServer, error) {
	var servers []model.GameServer
	err := s.db.WithContext(ctx).Order("id").Find(&servers).Error
	return servers, err
}

// ServerByID returns one registered server, or ErrNotFound.
func (s *Store) ServerByID(ctx context.Context, serverID string) (*model.GameServer, error) {
	var srv model.GameServer
	err := s.db.WithContext(ctx).Where("server_id = ?", serverID).First(&srv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &srv, nil
}

// ---- activity ----

// IncrCounter adds delta to the named global counter, creating it at
// zero first if needed.
func (s *Store) IncrCounter(ctx context.Context, name string, delta int64) error {
	if delta == 0 {
		return nil
	}
	c := model.ActivityCounter{Name: name}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&c).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.ActivityCounter{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + ?", delta)).Error
}

// CounterValue returns the named counter's value, zero if absent.
func (s *Store) CounterValue(ctx context.Context, name string) (int64, error) {
	var c model.ActivityCounter
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// AppendSeries appends one sample to the named semicolon-joined series.
func (s *Store) AppendSeries(ctx context.Context, name, sample string) error {
	var row model.ActivitySeries
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&model.ActivitySeries{Name: name, Data: sample}).Error
	}
	if err != nil {
		return err
	}
	data := sample
	if row.Data != "" {
		data = row.Data + ";" + sample
	}
	return s.db.WithContext(ctx).Model(&model.ActivitySeries{}).
		Where("name = ?", name).Update("data", data).Error
}

// Series returns the samples of the named series, oldest first.
func (s *Store) Series(ctx context.Context, name string) ([]string, error) {
	var row model.ActivitySeries
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Data == "" {
		return nil, nil
	}
	return strings.Split(row.Data, ";"), nil
}
