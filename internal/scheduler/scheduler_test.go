package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"ims/internal/config"
	"ims/internal/notify"
	"ims/internal/service"

	"github.com/google/uuid"
)

type fakeRequests struct {
	stale     []service.StaleRequest
	err       error
	olderThan time.Duration
}

func (f *fakeRequests) ListStalePending(_ context.Context, olderThan time.Duration) ([]service.StaleRequest, error) {
	f.olderThan = olderThan
	return f.stale, f.err
}

type fakeTokens struct {
	before time.Time
}

func (f *fakeTokens) DeleteExpiredRefreshTokens(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 3, nil
}

type capture struct {
	events []notify.Event
}

func (c *capture) Publish(_ context.Context, evt notify.Event) {
	c.events = append(c.events, evt)
}

func TestRemindStalePending(t *testing.T) {
	id := uuid.New()
	requests := &fakeRequests{stale: []service.StaleRequest{{ID: id, RequestNo: "PR-20260101-00001", StageRole: "principal"}}}
	pub := &capture{}
	cfg := config.SchedulerConfig{ReminderCron: "@hourly", ReminderAfter: 48 * time.Hour}

	s := NewScheduler(cfg, requests, &fakeTokens{}, pub, nil)
	s.remindStalePending()

	if requests.olderThan != 48*time.Hour {
		t.Errorf("expected threshold 48h, got %s", requests.olderThan)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(pub.events))
	}
	if pub.events[0].Type != notify.EventApprovalReminder || pub.events[0].EntityID != id.String() {
		t.Errorf("unexpected event %+v", pub.events[0])
	}
}

func TestRemindStalePendingListError(t *testing.T) {
	pub := &capture{}
	s := NewScheduler(config.SchedulerConfig{ReminderCron: "@hourly"}, &fakeRequests{err: errors.New("db down")}, &fakeTokens{}, pub, nil)
	s.remindStalePending()

	if len(pub.events) != 0 {
		t.Errorf("expected no events on failure, got %d", len(pub.events))
	}
}

func TestPurgeExpiredTokens(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tokens := &fakeTokens{}
	s := NewScheduler(config.SchedulerConfig{ReminderCron: "@hourly"}, &fakeRequests{}, tokens, nil, nil)
	s.now = func() time.Time { return fixed }

	s.purgeExpiredTokens()

	if !tokens.before.Equal(fixed) {
		t.Errorf("expected cutoff %s, got %s", fixed, tokens.before)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{ReminderCron: "every tuesday"}, &fakeRequests{}, &fakeTokens{}, nil, nil)
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for malformed cron spec")
	}
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{ReminderCron: "*/5 * * * *"}, &fakeRequests{}, &fakeTokens{}, nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("expected 2 jobs, got %d", got)
	}
	s.Stop()
}
