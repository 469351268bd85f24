package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/feralbyte/killwatch/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry holds one moderation action to be recorded.
type Entry struct {
	OpID      string
	ServerID  string
	Name      string
	Action    string // ban | unban
	Automatic bool
	Success   bool
	Error     string
	Detail    interface{}
}

// Service records moderation log entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.ModerationLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates an audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.ModerationLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues a moderation entry for async DB write.
func (svc *Service) Record(entry Entry) {
	detailJSON, _ := json.Marshal(entry.Detail)
	record := &model.ModerationLog{
		OpID:      entry.OpID,
		ServerID:  entry.ServerID,
		Name:      entry.Name,
		Action:    entry.Action,
		Automatic: entry.Automatic,
		Success:   entry.Success,
		Error:     entry.Error,
		Detail:    datatypes.JSON(detailJSON),
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("moderation log channel full, dropping entry",
			zap.String("action", entry.Action),
			zap.String("name", entry.Name))
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.ModerationLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("moderation log batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
