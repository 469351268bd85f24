package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/feralbyte/killwatch/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel notifications are published on.
const Channel = "killwatch:notifications"

const recentKey = "killwatch:notify:recent"

// Notification kinds.
const (
	KindKill       = "kill"
	KindDeath      = "death"
	KindConnect    = "connect"
	KindDisconnect = "disconnect"
	KindAltAlert   = "alt_alert"
	KindAltBanned  = "alt_banned"
	KindModeration = "moderation"
	KindHeatmap    = "heatmap_summary"
)

// Notification is one message for downstream consumers.
type Notification struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Severity string    `json:"severity"` // info | warn | alert
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	ServerID string    `json:"server_id,omitempty"`
	At       time.Time `json:"at"`
}

// Sink accepts notifications.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

// Service publishes notifications to pub/sub and keeps a bounded list
// of recent ones for the REST API.
type Service struct {
	ps     cache.PubSub
	c      cache.Cache
	limit  int64
	logger *zap.Logger
}

// NewService creates a notification Service keeping at most limit
// recent entries.
func NewService(ps cache.PubSub, c cache.Cache, limit int, logger *zap.Logger) *Service {
	if limit <= 0 {
		limit = 200
	}
	return &Service{ps: ps, c: c, limit: int64(limit), logger: logger}
}

// Publish stamps, stores and broadcasts the notification.
func (s *Service) Publish(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}
	if n.Severity == "" {
		n.Severity = "info"
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.c.LPush(ctx, recentKey, string(payload)); err != nil {
		s.logger.Warn("failed to store recent notification", zap.Error(err))
	} else if err := s.c.LTrim(ctx, recentKey, 0, s.limit-1); err != nil {
		s.logger.Warn("failed to trim recent notifications", zap.Error(err))
	}
	return s.ps.Publish(ctx, Channel, string(payload))
}

// Recent returns up to limit recent notifications, newest first.
func (s *Service) Recent(ctx context.Context, limit int64) ([]Notification, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	raw, err := s.c.LRange(ctx, recentKey, 0, limit-1)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			s.logger.Warn("skipping malformed stored notification", zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
