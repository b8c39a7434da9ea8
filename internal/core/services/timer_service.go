package services

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

const DefaultTickInterval = time.Second

type TimerSnapshot struct {
	State          string `json:"state"`
	Remaining      int    `json:"remaining"`
	SessionMinutes int    `json:"session_minutes"`
	Clock          string `json:"clock"`
}

type deskState struct {
	Remaining      int `json:"remaining"`
	SessionMinutes int `json:"sessionMinutes"`
}

// TimerService drives a SessionRun with a ticker goroutine and routes every
// elapsed slice to StatsService.
type TimerService struct {
	stats    *StatsService
	state    localState
	notifier Notifier
	logger   *zap.Logger
	interval time.Duration

	mu   sync.Mutex
	run  *domain.SessionRun
	stop chan struct{}
}

// NewTimerService builds an idle timer. With a zero interval no ticker
// goroutine is started and the caller drives Tick itself.
func NewTimerService(stats *StatsService, store domain.LocalStore, notifier Notifier, interval time.Duration, logger *zap.Logger) *TimerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	run, _ := domain.NewSessionRun(domain.DefaultSessionMinutes)
	return &TimerService{
		stats:    stats,
		state:    newLocalState(store, logger),
		notifier: notifier,
		logger:   logger,
		interval: interval,
		run:      run,
	}
}

// Load restores the saved session length and remaining time. A restored timer
// is always idle.
func (t *TimerService) Load(ctx context.Context) error {
	var saved deskState
	ok, err := t.state.load(ctx, KeyDeskState, &saved)
	if err != nil || !ok {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if saved.SessionMinutes > 0 {
		_ = t.run.SetDuration(saved.SessionMinutes)
	}
	if saved.Remaining > 0 {
		if err := t.run.Restore(saved.Remaining); err != nil {
			t.logger.Debug("saved timer state ignored", zap.Error(err))
		}
	}
	return nil
}

func (t *TimerService) Snapshot() TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *TimerService) snapshotLocked() TimerSnapshot {
	return TimerSnapshot{
		State:          t.run.State().String(),
		Remaining:      t.run.Remaining(),
		SessionMinutes: t.run.SessionMinutes(),
		Clock:          domain.FormatClock(t.run.Remaining()),
	}
}

// Start enters Running and starts the ticker. It reports false when the timer
// was already running.
func (t *TimerService) Start(ctx context.Context, uc domain.UserContext) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.run.Start() {
		return false
	}
	t.startTickerLocked(ctx, uc)
	return true
}

// Pause stops the countdown and flushes the slice run since the last start.
func (t *TimerService) Pause(ctx context.Context, uc domain.UserContext) (*FlushResult, error) {
	t.mu.Lock()
	elapsed, ok := t.run.Pause()
	if !ok {
		t.mu.Unlock()
		return nil, nil
	}
	t.stopTickerLocked()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snap)
	return t.flush(ctx, uc, elapsed)
}

func (t *TimerService) Toggle(ctx context.Context, uc domain.UserContext) (*FlushResult, error) {
	t.mu.Lock()
	running := t.run.Running()
	t.mu.Unlock()

	if running {
		return t.Pause(ctx, uc)
	}
	t.Start(ctx, uc)
	return nil, nil
}

// Reset returns to Idle without flushing anything.
func (t *TimerService) Reset(ctx context.Context) {
	t.mu.Lock()
	t.stopTickerLocked()
	t.run.Reset()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snap)
}

// SetDuration changes the session length and resets to Idle without flushing.
func (t *TimerService) SetDuration(ctx context.Context, minutes int) error {
	t.mu.Lock()
	if err := t.run.SetDuration(minutes); err != nil {
		t.mu.Unlock()
		return err
	}
	t.stopTickerLocked()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snap)
	return nil
}

// Tick advances the countdown by one second. On completion the remaining slice
// is flushed and the notifier is told.
func (t *TimerService) Tick(ctx context.Context, uc domain.UserContext) (*FlushResult, error) {
	return t.tickFrom(ctx, uc, nil)
}

// tickFrom is Tick for a ticker goroutine. A tick from a ticker that was
// stopped while it waited for the lock is dropped.
func (t *TimerService) tickFrom(ctx context.Context, uc domain.UserContext, from chan struct{}) (*FlushResult, error) {
	t.mu.Lock()
	if from != nil && t.stop != from {
		t.mu.Unlock()
		return nil, nil
	}
	completed, elapsed := t.run.Tick()
	if !completed {
		t.mu.Unlock()
		return nil, nil
	}
	t.stopTickerLocked()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snap)
	result, err := t.flush(ctx, uc, elapsed)

	t.notifier.SessionComplete(int(math.Round(float64(elapsed) / 60)))
	return result, err
}

// Close stops the ticker and saves the timer state. A running session is left
// unflushed, matching what closing the app does.
func (t *TimerService) Close(ctx context.Context) {
	t.mu.Lock()
	t.stopTickerLocked()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snap)
}

func (t *TimerService) flush(ctx context.Context, uc domain.UserContext, seconds int) (*FlushResult, error) {
	if seconds <= 0 || t.stats == nil {
		return nil, nil
	}
	return t.stats.Flush(ctx, uc, float64(seconds)/60)
}

func (t *TimerService) persist(ctx context.Context, snap TimerSnapshot) {
	err := t.state.save(ctx, KeyDeskState, deskState{
		Remaining:      snap.Remaining,
		SessionMinutes: snap.SessionMinutes,
	})
	if err != nil {
		t.logger.Warn("saving timer state failed", zap.Error(err))
	}
}

func (t *TimerService) startTickerLocked(ctx context.Context, uc domain.UserContext) {
	if t.interval <= 0 || t.stop != nil {
		return
	}
	stop := make(chan struct{})
	t.stop = stop

	tickCtx := context.WithoutCancel(ctx)
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := t.tickFrom(tickCtx, uc, stop); err != nil {
					t.logger.Error("completing session failed", zap.Error(err))
				}
			}
		}
	}()
}

// stopTickerLocked signals the ticker goroutine. It does not wait: the
// goroutine may be the caller, inside Tick.
func (t *TimerService) stopTickerLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
}
