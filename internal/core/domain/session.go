package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSessionLength = errors.New("session length must be a positive number of minutes")
)

const DefaultSessionMinutes = 25

type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerPaused
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	default:
		return "idle"
	}
}

// SessionRun is the countdown state machine behind the focus timer.
//
// The checkpoint holds the seconds remaining at the most recent start or
// resume. Pausing reports the slice elapsed since the checkpoint and moves the
// checkpoint to the current remaining value, so every running second is
// reported exactly once no matter how often the run is paused.
type SessionRun struct {
	sessionSeconds int
	remaining      int
	running        bool
	checkpoint     *int
}

func NewSessionRun(minutes int) (*SessionRun, error) {
	if minutes <= 0 {
		return nil, ErrInvalidSessionLength
	}
	return &SessionRun{
		sessionSeconds: minutes * 60,
		remaining:      minutes * 60,
	}, nil
}

func (r *SessionRun) State() TimerState {
	switch {
	case r.running:
		return TimerRunning
	case r.checkpoint != nil:
		return TimerPaused
	default:
		return TimerIdle
	}
}

func (r *SessionRun) Running() bool       { return r.running }
func (r *SessionRun) Remaining() int      { return r.remaining }
func (r *SessionRun) SessionSeconds() int { return r.sessionSeconds }
func (r *SessionRun) SessionMinutes() int { return r.sessionSeconds / 60 }

func (r *SessionRun) Checkpoint() (int, bool) {
	if r.checkpoint == nil {
		return 0, false
	}
	return *r.checkpoint, true
}

// Start enters Running. A fresh run takes the current remaining seconds as
// its checkpoint; a paused run keeps the baseline set by Pause.
func (r *SessionRun) Start() bool {
	if r.running {
		return false
	}
	if r.checkpoint == nil {
		r.setCheckpoint(r.remaining)
	}
	r.running = true
	return true
}

// Pause leaves Running and returns the seconds elapsed since the checkpoint.
func (r *SessionRun) Pause() (int, bool) {
	if !r.running {
		return 0, false
	}
	r.running = false

	elapsed := 0
	if r.checkpoint != nil {
		elapsed = *r.checkpoint - r.remaining
	}
	r.setCheckpoint(r.remaining)

	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

// Tick advances a running countdown by one second. When the countdown hits
// zero the run completes and the unreported seconds are returned.
func (r *SessionRun) Tick() (completed bool, elapsed int) {
	if !r.running {
		return false, 0
	}
	r.remaining--
	if r.remaining > 0 {
		return false, 0
	}
	return true, r.complete()
}

func (r *SessionRun) complete() int {
	elapsed := r.sessionSeconds
	if r.checkpoint != nil {
		elapsed = *r.checkpoint
	}

	r.running = false
	r.checkpoint = nil
	r.remaining = r.sessionSeconds

	return elapsed
}

// Reset discards the checkpoint without reporting anything.
func (r *SessionRun) Reset() {
	r.running = false
	r.checkpoint = nil
	r.remaining = r.sessionSeconds
}

// SetDuration changes the configured length and resets to Idle.
func (r *SessionRun) SetDuration(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidSessionLength
	}
	r.sessionSeconds = minutes * 60
	r.Reset()
	return nil
}

// Restore sets the remaining seconds of an idle run from a saved snapshot.
func (r *SessionRun) Restore(remaining int) error {
	if r.running || r.checkpoint != nil {
		return fmt.Errorf("restore: timer is %s", r.State())
	}
	if remaining <= 0 || remaining > r.sessionSeconds {
		return fmt.Errorf("restore: remaining %ds outside 1..%d", remaining, r.sessionSeconds)
	}
	r.remaining = remaining
	return nil
}

func (r *SessionRun) setCheckpoint(v int) {
	r.checkpoint = &v
}

// FormatClock renders seconds as mm:ss, or "1h 05m" from one hour up.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds >= 3600 {
		hours := seconds / 3600
		minutes := (seconds % 3600) / 60
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
