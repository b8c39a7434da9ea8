package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTaskTextEmpty      = errors.New("task text cannot be empty")
	ErrTaskTextTooLong    = errors.New("task text is too long (max 280 chars)")
	ErrInvalidTaskDate    = errors.New("invalid task date (must be YYYY-MM-DD)")
	ErrTaskNotFound       = errors.New("task not found")
	ErrPresetNameEmpty    = errors.New("preset name cannot be empty")
	ErrPresetNotFound     = errors.New("preset not found")
	ErrPresetLimit        = errors.New("free plan allows up to 2 presets")
	ErrInvalidVolume      = errors.New("volume must be between 0 and 100")
	ErrInvalidWeeklyGoal  = errors.New("weekly goal must be a positive number of minutes")
	ErrSignInRequired     = errors.New("sign in required")
	ErrPremiumRequired    = errors.New("premium plan required")
	ErrNegativeTrackIndex = errors.New("track and theme indexes cannot be negative")
)

const (
	MaxTaskTextLen           = 280
	FreePresetLimit          = 2
	DefaultWeeklyGoalMinutes = 600
)

type Task struct {
	ID   string  `json:"id"`
	Text string  `json:"text"`
	Done bool    `json:"done"`
	Date *string `json:"date"`
}

func NewTask(text, date string) (Task, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Task{}, ErrTaskTextEmpty
	}
	if len(trimmed) > MaxTaskTextLen {
		return Task{}, ErrTaskTextTooLong
	}

	var datePtr *string
	if d := strings.TrimSpace(date); d != "" {
		if !IsValidDateKey(d) {
			return Task{}, ErrInvalidTaskDate
		}
		datePtr = &d
	}

	return Task{
		ID:   uuid.NewString(),
		Text: trimmed,
		Date: datePtr,
	}, nil
}

func (t Task) DueOn(day string) bool {
	return t.Date != nil && *t.Date == day
}

// PresetSettings is the desk configuration a preset captures.
type PresetSettings struct {
	SessionMinutes int `json:"sessionMinutes"`
	ThemeIndex     int `json:"themeIndex"`
	RadioIndex     int `json:"radioIndex"`
	AmbientIndex   int `json:"ambientIndex"`
	RadioVolume    int `json:"radioVolume"`
	AmbientVolume  int `json:"ambientVolume"`
}

type Preset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	PresetSettings
}

func NewPreset(name string, settings PresetSettings) (Preset, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Preset{}, ErrPresetNameEmpty
	}
	if err := settings.Validate(); err != nil {
		return Preset{}, err
	}
	return Preset{
		ID:             uuid.NewString(),
		Name:           trimmed,
		PresetSettings: settings,
	}, nil
}

func (s PresetSettings) Validate() error {
	if s.SessionMinutes <= 0 {
		return ErrInvalidSessionLength
	}
	if s.RadioVolume < 0 || s.RadioVolume > 100 || s.AmbientVolume < 0 || s.AmbientVolume > 100 {
		return ErrInvalidVolume
	}
	if s.ThemeIndex < 0 || s.RadioIndex < 0 || s.AmbientIndex < 0 {
		return ErrNegativeTrackIndex
	}
	return nil
}
