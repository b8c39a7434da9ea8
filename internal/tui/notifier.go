package tui

import (
	"fmt"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

const notifierBuffer = 16

var _ services.Notifier = (*Notifier)(nil)

type EventKind int

const (
	EventSessionComplete EventKind = iota
	EventLevelUp
	EventMessage
)

type Event struct {
	Kind EventKind
	Text string
	Bell bool
}

// Notifier turns service notifications into events for the running program.
// Sends never block: when nobody is reading, events beyond the buffer are
// dropped.
type Notifier struct {
	events chan Event
	bell   bool
}

func NewNotifier(bell bool) *Notifier {
	return &Notifier{
		events: make(chan Event, notifierBuffer),
		bell:   bell,
	}
}

func (n *Notifier) Events() <-chan Event {
	return n.events
}

func (n *Notifier) SessionComplete(minutes int) {
	n.send(Event{
		Kind: EventSessionComplete,
		Text: fmt.Sprintf("Session complete! %d min of focus logged.", minutes),
		Bell: n.bell,
	})
}

func (n *Notifier) LevelUp(level domain.Level) {
	n.send(Event{
		Kind: EventLevelUp,
		Text: fmt.Sprintf("Level up! You reached %s.", level),
		Bell: n.bell,
	})
}

func (n *Notifier) Message(text string) {
	n.send(Event{Kind: EventMessage, Text: text})
}

func (n *Notifier) send(ev Event) {
	select {
	case n.events <- ev:
	default:
	}
}
