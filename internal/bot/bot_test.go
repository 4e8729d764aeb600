package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edgard/scribrbot/internal/bot/tasks"
	"github.com/edgard/scribrbot/internal/config"
	"github.com/edgard/scribrbot/internal/logger"
)

type fakeRunner struct {
	err error
}

func (f fakeRunner) Run(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func noopTask(context.Context) error { return nil }

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig) *Scheduler {
	t.Helper()
	s, err := NewScheduler(logger.Discard(), cfg, map[string]tasks.ScheduledTaskFunc{
		tasks.SQLMaintenance: noopTask,
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	return s
}

func TestBotRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	b := NewBot(logger.Discard(), fakeRunner{}, newTestScheduler(t, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestBotRunReturnsServerError(t *testing.T) {
	t.Parallel()
	serverErr := errors.New("address already in use")
	b := NewBot(logger.Discard(), fakeRunner{err: serverErr}, newTestScheduler(t, nil))

	if err := b.Run(context.Background()); !errors.Is(err, serverErr) {
		t.Errorf("Run() error = %v, want %v", err, serverErr)
	}
}

func TestSchedulerRegistersEnabledKnownTasks(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		tasks.SQLMaintenance: {Enabled: true, Schedule: "0 0 4 * * *"},
		"disabled":           {Enabled: false, Schedule: "0 0 4 * * *"},
		"unknown":            {Enabled: true, Schedule: "0 0 4 * * *"},
	}})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start() error = nil")
	}
	if got := s.Scheduled(); got != 1 {
		t.Errorf("Scheduled() = %d, want 1", got)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestSchedulerSkipsBadSchedule(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		tasks.SQLMaintenance: {Enabled: true, Schedule: "not a cron"},
	}})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	if got := s.Scheduled(); got != 0 {
		t.Errorf("Scheduled() = %d, want 0", got)
	}
}
