package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

// Device storage keys. Every value is JSON text.
const (
	KeyDailyTotals      = "dailyTotals"
	KeyDailyMinutes     = "dailyMinutes"
	KeyStreakCount      = "streakCount"
	KeyStreakLastActive = "streakLastActive"
	KeySessionHistory   = "sessionHistory"
	KeyNotepad          = "notepadContent"
	KeyTasks            = "tasks"
	KeyPresets          = "presets"
	KeyWeeklyGoal       = "weeklyGoalMinutes"
	KeyOnboardingSeen   = "onboardingSeen"
	KeyLastLevel        = "lastLevel"
	KeyIsPremium        = "isPremium"
	KeyDeskState        = "deskState"
	KeyDeskSettings     = "deskSettings"
	KeyTaskReminder     = "taskReminderLastShown"
)

// localState reads and writes JSON values in a LocalStore. A value that fails
// to decode is logged and reported as absent so callers fall back to defaults.
type localState struct {
	store  domain.LocalStore
	logger *zap.Logger
}

func newLocalState(store domain.LocalStore, logger *zap.Logger) localState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return localState{store: store, logger: logger}
}

func (s localState) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("local store: get %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("malformed local value ignored", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s localState) save(ctx context.Context, key string, v any) error {
	raw, err := encode(v)
	if err != nil {
		return fmt.Errorf("local store: encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("local store: set %s: %w", key, err)
	}
	return nil
}

// saveMany encodes every value first and writes them in one atomic batch.
func (s localState) saveMany(ctx context.Context, values map[string]any) error {
	batch := make(map[string]string, len(values))
	for k, v := range values {
		raw, err := encode(v)
		if err != nil {
			return fmt.Errorf("local store: encode %s: %w", k, err)
		}
		batch[k] = raw
	}
	if err := s.store.SetMany(ctx, batch); err != nil {
		return fmt.Errorf("local store: batch write: %w", err)
	}
	return nil
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s localState) totals(ctx context.Context) (domain.DailyTotals, error) {
	var totals domain.DailyTotals
	ok, err := s.load(ctx, KeyDailyTotals, &totals)
	if err != nil {
		return nil, err
	}
	if !ok || totals == nil {
		return domain.DailyTotals{}, nil
	}
	return totals, nil
}

func (s localState) streak(ctx context.Context) (domain.StreakState, error) {
	var st domain.StreakState

	var count int
	ok, err := s.load(ctx, KeyStreakCount, &count)
	if err != nil {
		return st, err
	}
	if ok && count > 0 {
		st.Count = count
	}

	var last string
	ok, err = s.load(ctx, KeyStreakLastActive, &last)
	if err != nil {
		return st, err
	}
	if ok {
		if key, valid := domain.NormalizeDay(last); valid {
			st.LastActive = key
		}
	}
	return st, nil
}

func (s localState) history(ctx context.Context) ([]domain.SessionHistoryEntry, error) {
	var history []domain.SessionHistoryEntry
	ok, err := s.load(ctx, KeySessionHistory, &history)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return history, nil
}

func (s localState) tasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	ok, err := s.load(ctx, KeyTasks, &tasks)
	if err != nil {
		return nil, err
	}
	if !ok || tasks == nil {
		return []domain.Task{}, nil
	}
	return tasks, nil
}

func (s localState) presets(ctx context.Context) ([]domain.Preset, error) {
	var presets []domain.Preset
	ok, err := s.load(ctx, KeyPresets, &presets)
	if err != nil {
		return nil, err
	}
	if !ok || presets == nil {
		return []domain.Preset{}, nil
	}
	return presets, nil
}

func (s localState) weeklyGoal(ctx context.Context) (int, error) {
	var goal int
	ok, err := s.load(ctx, KeyWeeklyGoal, &goal)
	if err != nil {
		return 0, err
	}
	if !ok || goal <= 0 {
		return domain.DefaultWeeklyGoalMinutes, nil
	}
	return goal, nil
}

func (s localState) notepad(ctx context.Context) (string, error) {
	var text string
	if _, err := s.load(ctx, KeyNotepad, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (s localState) flag(ctx context.Context, key string) (bool, error) {
	var v bool
	if _, err := s.load(ctx, key, &v); err != nil {
		return false, err
	}
	return v, nil
}
