package services

import "github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"

// Notifier surfaces one-off events to the user (bell, desktop notification,
// modal). Implementations must not block.
type Notifier interface {
	SessionComplete(minutes int)
	LevelUp(level domain.Level)
	Message(text string)
}

type NopNotifier struct{}

func (NopNotifier) SessionComplete(int) {}
func (NopNotifier) LevelUp(domain.Level) {}
func (NopNotifier) Message(string) {}
