package services

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/workers"
	"github.com/comitanigiacomo/vibedesk-engine/internal/platform/clock"
)

const todaySessionsLimit = 12

// StatsService owns the device's focus totals, streak and session history.
type StatsService struct {
	state  localState
	queue  *workers.SyncWorker
	levels *LevelTracker
	clock  clock.Clock
	logger *zap.Logger

	mu sync.Mutex
}

func NewStatsService(store domain.LocalStore, queue *workers.SyncWorker, levels *LevelTracker, clk clock.Clock, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &StatsService{
		state:  newLocalState(store, logger),
		queue:  queue,
		levels: levels,
		clock:  clk,
		logger: logger,
	}
}

type FlushResult struct {
	Day           string                     `json:"day"`
	DayTotal      float64                    `json:"day_total"`
	Streak        domain.StreakState         `json:"streak"`
	StreakChanged bool                       `json:"streak_changed"`
	Entry         domain.SessionHistoryEntry `json:"entry"`
	Level         domain.LevelProgress       `json:"level"`
	LevelUp       bool                       `json:"level_up"`
	Queued        bool                       `json:"queued"`
}

type StatsSummary struct {
	Today              float64              `json:"today_minutes"`
	WeekMinutes        float64              `json:"week_minutes"`
	WeekActiveDays     int                  `json:"week_active_days"`
	MonthActiveDays    int                  `json:"month_active_days"`
	Streak             domain.StreakState   `json:"streak"`
	Level              domain.LevelProgress `json:"level"`
	WeeklyGoal         int                  `json:"weekly_goal_minutes"`
	WeeklyGoalProgress int                  `json:"weekly_goal_progress"`
}

// Flush commits minutes of focus to today's total. Non-positive or NaN
// amounts are ignored and return a nil result.
//
// The local write and the scheduling of the remote merge happen under one
// lock, so concurrent flushes never interleave.
func (s *StatsService) Flush(ctx context.Context, uc domain.UserContext, minutes float64) (*FlushResult, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		return nil, nil
	}

	s.mu.Lock()

	now := s.clock.Now()
	today := domain.DateKey(now)

	totals, err := s.state.totals(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	streak, err := s.state.streak(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	history, err := s.state.history(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	dayTotal := totals.Add(today, minutes)
	changed := streak.RecordActivity(now)
	entry := domain.NewSessionHistoryEntry(now, minutes)
	history = append(history, entry)

	err = s.state.saveMany(ctx, map[string]any{
		KeyDailyTotals:      totals,
		KeyDailyMinutes:     dayTotal,
		KeyStreakCount:      streak.Count,
		KeyStreakLastActive: streak.LastActive,
		KeySessionHistory:   history,
	})
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	result := &FlushResult{
		Day:           today,
		DayTotal:      dayTotal,
		Streak:        streak,
		StreakChanged: changed,
		Entry:         entry,
	}

	if uc.SignedIn() && s.queue != nil {
		result.Queued = s.queue.Enqueue(uc, domain.TotalsPatch(totals, streak, uc.Email))
	}
	s.mu.Unlock()

	s.logger.Debug("focus flushed",
		zap.String("day", today),
		zap.Float64("minutes", minutes),
		zap.Float64("day_total", dayTotal),
		zap.Int("streak", streak.Count),
	)

	result.Level, result.LevelUp = s.observeLevel(ctx, streak.Count)

	return result, nil
}

// ResetToday zeroes today's total. Earlier days and the streak are untouched
// and nothing is sent to the remote document.
func (s *StatsService) ResetToday(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals, err := s.state.totals(ctx)
	if err != nil {
		return err
	}
	totals.Reset(domain.DateKey(s.clock.Now()))

	return s.state.saveMany(ctx, map[string]any{
		KeyDailyTotals:  totals,
		KeyDailyMinutes: 0,
	})
}

// Adopt replaces the local totals and streak fields that the remote document
// provides. Nil arguments leave the local value as it is. An adopted streak
// count goes through the level tracker like a flushed one.
func (s *StatsService) Adopt(ctx context.Context, totals domain.DailyTotals, streakCount *int, lastActive *string) error {
	values := make(map[string]any, 3)
	if totals != nil {
		values[KeyDailyTotals] = totals
	}
	if streakCount != nil {
		values[KeyStreakCount] = *streakCount
	}
	if lastActive != nil {
		values[KeyStreakLastActive] = *lastActive
	}
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	err := s.state.saveMany(ctx, values)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if streakCount != nil {
		s.observeLevel(ctx, *streakCount)
	}
	return nil
}

// RecordLevel records the band of the stored streak. On a fresh device this
// is silent; it only announces a band above the last one recorded.
func (s *StatsService) RecordLevel(ctx context.Context) error {
	s.mu.Lock()
	streak, err := s.state.streak(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.observeLevel(ctx, streak.Count)
	return nil
}

func (s *StatsService) observeLevel(ctx context.Context, streakCount int) (domain.LevelProgress, bool) {
	if s.levels == nil {
		return domain.LevelOf(streakCount), false
	}
	level, up, err := s.levels.Observe(ctx, streakCount)
	if err != nil {
		s.logger.Warn("level tracking failed", zap.Error(err))
		return domain.LevelOf(streakCount), false
	}
	return level, up
}

// Snapshot returns the current totals and streak for building a remote document.
func (s *StatsService) Snapshot(ctx context.Context) (domain.DailyTotals, domain.StreakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals, err := s.state.totals(ctx)
	if err != nil {
		return nil, domain.StreakState{}, err
	}
	streak, err := s.state.streak(ctx)
	if err != nil {
		return nil, domain.StreakState{}, err
	}
	return totals, streak, nil
}

func (s *StatsService) Summary(ctx context.Context) (*StatsSummary, error) {
	totals, streak, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	goal, err := s.state.weeklyGoal(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	week := totals.Week(now)

	return &StatsSummary{
		Today:              totals.Day(domain.DateKey(now)),
		WeekMinutes:        week.Minutes,
		WeekActiveDays:     week.ActiveDays,
		MonthActiveDays:    totals.MonthActiveDays(now),
		Streak:             streak,
		Level:              domain.LevelOf(streak.Count),
		WeeklyGoal:         goal,
		WeeklyGoalProgress: goalProgress(week.Minutes, goal),
	}, nil
}

func goalProgress(minutes float64, goal int) int {
	p := int(math.Round(minutes / math.Max(1, float64(goal)) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// History returns per-day buckets for the last `days` days.
func (s *StatsService) History(ctx context.Context, days int) ([]domain.DayBucket, error) {
	totals, _, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return totals.Window(s.clock.Now(), days), nil
}

// TodaySessions returns today's most recent history entries, oldest first.
func (s *StatsService) TodaySessions(ctx context.Context) ([]domain.SessionHistoryEntry, error) {
	s.mu.Lock()
	history, err := s.state.history(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return domain.EntriesOn(history, domain.DateKey(s.clock.Now()), todaySessionsLimit), nil
}

func (s *StatsService) Calendar(ctx context.Context, year int, month int, tasks []domain.Task) ([]domain.CalendarCell, error) {
	totals, _, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	taskDates := make(map[string]bool)
	for _, t := range tasks {
		if t.Date != nil {
			taskDates[*t.Date] = true
		}
	}

	return totals.CalendarMonth(year, time.Month(month), s.clock.Now(), taskDates), nil
}
