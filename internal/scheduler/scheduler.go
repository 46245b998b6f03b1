package scheduler

import (
	"context"
	"fmt"
	"time"

	"ims/internal/config"
	"ims/internal/notify"
	"ims/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const tokenPurgeSpec = "@daily"

// StaleRequestLister reports pending requests stuck at a stage.
type StaleRequestLister interface {
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]service.StaleRequest, error)
}

// TokenPurger removes refresh tokens that expired before the given time.
type TokenPurger interface {
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	requests  StaleRequestLister
	tokens    TokenPurger
	publisher notify.Publisher
	cfg       config.SchedulerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.SchedulerConfig, requests StaleRequestLister, tokens TokenPurger, publisher notify.Publisher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = notify.Nop{}
	}

	return &Scheduler{
		cron:      cron.New(),
		requests:  requests,
		tokens:    tokens,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("reminder_cron", s.cfg.ReminderCron))

	if _, err := s.cron.AddFunc(s.cfg.ReminderCron, s.remindStalePending); err != nil {
		return fmt.Errorf("failed to schedule approval reminders: %w", err)
	}
	if _, err := s.cron.AddFunc(tokenPurgeSpec, s.purgeExpiredTokens); err != nil {
		return fmt.Errorf("failed to schedule token purge: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) remindStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stale, err := s.requests.ListStalePending(ctx, s.cfg.ReminderAfter)
	if err != nil {
		s.logger.Error("failed to list stale purchase requests", zap.Error(err))
		return
	}

	for _, req := range stale {
		s.publisher.Publish(ctx, notify.NewEvent(notify.EventApprovalReminder, req.ID.String(), req))
	}
	if len(stale) > 0 {
		s.logger.Info("approval reminders sent", zap.Int("count", len(stale)))
	}
}

func (s *Scheduler) purgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.tokens.DeleteExpiredRefreshTokens(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to purge refresh tokens", zap.Error(err))
		return
	}
	s.logger.Debug("expired refresh tokens purged", zap.Int64("count", n))
}
