package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

// LevelTracker remembers the last badge band shown to the user and announces
// upward moves exactly once.
type LevelTracker struct {
	state    localState
	notifier Notifier

	mu sync.Mutex
}

func NewLevelTracker(store domain.LocalStore, notifier Notifier, logger *zap.Logger) *LevelTracker {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &LevelTracker{
		state:    newLocalState(store, logger),
		notifier: notifier,
	}
}

// Observe records the band for streakCount. It reports true only when the band
// is strictly above the recorded one. The first observation and downward moves
// are recorded silently.
func (t *LevelTracker) Observe(ctx context.Context, streakCount int) (domain.LevelProgress, bool, error) {
	progress := domain.LevelOf(streakCount)

	t.mu.Lock()
	defer t.mu.Unlock()

	var stored domain.Level
	ok, err := t.state.load(ctx, KeyLastLevel, &stored)
	if err != nil {
		return progress, false, err
	}

	if ok && stored == progress.Level {
		return progress, false, nil
	}

	if err := t.state.save(ctx, KeyLastLevel, progress.Level); err != nil {
		return progress, false, err
	}

	if !ok || progress.Level < stored {
		return progress, false, nil
	}

	t.notifier.LevelUp(progress.Level)
	return progress, true, nil
}
