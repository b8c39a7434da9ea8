package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/platform/clock"
)

const reminderPreviewLen = 3

// WorkspaceService manages the desk's tasks, presets, notepad and weekly goal.
// Every change is stored locally first and then handed to SyncService.
type WorkspaceService struct {
	state  localState
	sync   *SyncService
	timer  *TimerService
	clock  clock.Clock
	logger *zap.Logger

	mu sync.Mutex
}

func NewWorkspaceService(store domain.LocalStore, syncSvc *SyncService, timer *TimerService, clk clock.Clock, logger *zap.Logger) *WorkspaceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &WorkspaceService{
		state:  newLocalState(store, logger),
		sync:   syncSvc,
		timer:  timer,
		clock:  clk,
		logger: logger,
	}
}

func (s *WorkspaceService) Tasks(ctx context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.tasks(ctx)
}

func (s *WorkspaceService) AddTask(ctx context.Context, uc domain.UserContext, text, date string) (domain.Task, error) {
	task, err := domain.NewTask(text, date)
	if err != nil {
		return domain.Task{}, err
	}

	err = s.updateTasks(ctx, uc, func(tasks []domain.Task) ([]domain.Task, error) {
		return append(tasks, task), nil
	})
	return task, err
}

func (s *WorkspaceService) ToggleTask(ctx context.Context, uc domain.UserContext, id string) error {
	return s.updateTasks(ctx, uc, func(tasks []domain.Task) ([]domain.Task, error) {
		for i := range tasks {
			if tasks[i].ID == id {
				tasks[i].Done = !tasks[i].Done
				return tasks, nil
			}
		}
		return nil, domain.ErrTaskNotFound
	})
}

func (s *WorkspaceService) DeleteTask(ctx context.Context, uc domain.UserContext, id string) error {
	return s.updateTasks(ctx, uc, func(tasks []domain.Task) ([]domain.Task, error) {
		for i := range tasks {
			if tasks[i].ID == id {
				return append(tasks[:i], tasks[i+1:]...), nil
			}
		}
		return nil, domain.ErrTaskNotFound
	})
}

func (s *WorkspaceService) updateTasks(ctx context.Context, uc domain.UserContext, fn func([]domain.Task) ([]domain.Task, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.state.tasks(ctx)
	if err != nil {
		return err
	}
	next, err := fn(tasks)
	if err != nil {
		return err
	}
	if err := s.state.save(ctx, KeyTasks, next); err != nil {
		return err
	}
	if s.sync != nil {
		s.sync.PushTasks(uc, next)
	}
	return nil
}

// TasksDueToday lists today's open tasks.
func (s *WorkspaceService) TasksDueToday(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	today := domain.DateKey(s.clock.Now())
	var due []domain.Task
	for _, t := range tasks {
		if t.DueOn(today) && !t.Done {
			due = append(due, t)
		}
	}
	return due, nil
}

// TaskReminder returns today's reminder text the first time it is asked for on
// a day with open tasks, and false on every later call that day.
func (s *WorkspaceService) TaskReminder(ctx context.Context) (string, bool, error) {
	due, err := s.TasksDueToday(ctx)
	if err != nil || len(due) == 0 {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := domain.DateKey(s.clock.Now())
	var lastShown string
	if _, err := s.state.load(ctx, KeyTaskReminder, &lastShown); err != nil {
		return "", false, err
	}
	if lastShown == today {
		return "", false, nil
	}
	if err := s.state.save(ctx, KeyTaskReminder, today); err != nil {
		return "", false, err
	}

	return reminderMessage(due), true, nil
}

func reminderMessage(due []domain.Task) string {
	plural := "s"
	if len(due) == 1 {
		plural = ""
	}

	n := min(len(due), reminderPreviewLen)
	texts := make([]string, 0, n)
	for _, t := range due[:n] {
		texts = append(texts, t.Text)
	}
	suffix := ""
	if len(due) > reminderPreviewLen {
		suffix = "…"
	}

	return fmt.Sprintf("You have %d task%s scheduled for today: %s%s",
		len(due), plural, strings.Join(texts, " • "), suffix)
}

func (s *WorkspaceService) Presets(ctx context.Context) ([]domain.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.presets(ctx)
}

// SavePreset stores the given desk settings under a name. Presets need a
// signed-in user and the free plan keeps at most two.
func (s *WorkspaceService) SavePreset(ctx context.Context, uc domain.UserContext, name string, settings domain.PresetSettings) (domain.Preset, error) {
	if !uc.SignedIn() {
		return domain.Preset{}, domain.ErrSignInRequired
	}
	preset, err := domain.NewPreset(name, settings)
	if err != nil {
		return domain.Preset{}, err
	}

	premium := s.sync != nil && s.sync.IsPremium(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	presets, err := s.state.presets(ctx)
	if err != nil {
		return domain.Preset{}, err
	}
	if !premium && len(presets) >= domain.FreePresetLimit {
		return domain.Preset{}, domain.ErrPresetLimit
	}

	next := append(presets, preset)
	if err := s.state.save(ctx, KeyPresets, next); err != nil {
		return domain.Preset{}, err
	}
	if s.sync != nil {
		s.sync.PushPresets(uc, next)
	}
	return preset, nil
}

// ApplyPreset loads a preset's settings onto the desk and resets the timer to
// its length without flushing the current run.
func (s *WorkspaceService) ApplyPreset(ctx context.Context, id string) (domain.Preset, error) {
	presets, err := s.Presets(ctx)
	if err != nil {
		return domain.Preset{}, err
	}

	for _, p := range presets {
		if p.ID != id {
			continue
		}
		if err := s.SetDeskSettings(ctx, p.PresetSettings); err != nil {
			return domain.Preset{}, err
		}
		return p, nil
	}
	return domain.Preset{}, domain.ErrPresetNotFound
}

func (s *WorkspaceService) DeletePreset(ctx context.Context, uc domain.UserContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets, err := s.state.presets(ctx)
	if err != nil {
		return err
	}

	next := make([]domain.Preset, 0, len(presets))
	for _, p := range presets {
		if p.ID != id {
			next = append(next, p)
		}
	}
	if len(next) == len(presets) {
		return domain.ErrPresetNotFound
	}

	if err := s.state.save(ctx, KeyPresets, next); err != nil {
		return err
	}
	if s.sync != nil {
		s.sync.PushPresets(uc, next)
	}
	return nil
}

// DeskSettings returns the current desk settings, defaulting the session
// length to the timer's.
func (s *WorkspaceService) DeskSettings(ctx context.Context) (domain.PresetSettings, error) {
	settings := domain.PresetSettings{
		SessionMinutes: domain.DefaultSessionMinutes,
		RadioVolume:    50,
		AmbientVolume:  30,
	}
	if _, err := s.state.load(ctx, KeyDeskSettings, &settings); err != nil {
		return settings, err
	}
	if s.timer != nil {
		settings.SessionMinutes = s.timer.Snapshot().SessionMinutes
	}
	return settings, nil
}

func (s *WorkspaceService) SetDeskSettings(ctx context.Context, settings domain.PresetSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.state.save(ctx, KeyDeskSettings, settings); err != nil {
		return err
	}
	if s.timer != nil {
		return s.timer.SetDuration(ctx, settings.SessionMinutes)
	}
	return nil
}

func (s *WorkspaceService) Notepad(ctx context.Context) (string, error) {
	return s.state.notepad(ctx)
}

func (s *WorkspaceService) SetNotepad(ctx context.Context, uc domain.UserContext, text string) error {
	if err := s.state.save(ctx, KeyNotepad, text); err != nil {
		return err
	}
	if s.sync != nil {
		s.sync.PushNotepad(uc, text)
	}
	return nil
}

func (s *WorkspaceService) WeeklyGoal(ctx context.Context) (int, error) {
	return s.state.weeklyGoal(ctx)
}

func (s *WorkspaceService) SetWeeklyGoal(ctx context.Context, uc domain.UserContext, minutes int) error {
	if minutes <= 0 {
		return domain.ErrInvalidWeeklyGoal
	}
	if err := s.state.save(ctx, KeyWeeklyGoal, minutes); err != nil {
		return err
	}
	if s.sync != nil {
		s.sync.PushWeeklyGoal(ctx, uc, minutes)
	}
	return nil
}

func (s *WorkspaceService) OnboardingSeen(ctx context.Context) (bool, error) {
	return s.state.flag(ctx, KeyOnboardingSeen)
}

func (s *WorkspaceService) MarkOnboardingSeen(ctx context.Context) error {
	return s.state.save(ctx, KeyOnboardingSeen, true)
}
