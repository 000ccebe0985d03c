// Package bus carries change notifications between reader components, so
// a highlight mutation in one place reaches every overlay and list that
// renders it.
package bus

import "sync"

// Kind identifies what changed.
type Kind string

const (
	// ReloadHighlights signals the highlight set of a document changed
	// and overlays showing that document should rebuild.
	ReloadHighlights Kind = "reload-highlights"
	// ReloadSessions signals stored session state changed.
	ReloadSessions Kind = "reload-sessions"
)

// Event is one change notification. DocID names the document the change
// belongs to; subscribers compare it against their open document and
// ignore events for anything else.
type Event struct {
	Kind  Kind
	DocID string
}

// Bus is a broadcast channel for change events.
type Bus interface {
	Publish(Event)
	// Subscribe returns a channel receiving every event published after
	// the call. Slow subscribers drop notifications rather than block
	// publishers; a dropped reload only means the next one does the work.
	Subscribe() <-chan Event
}

// Memory is the in-process Bus.
type Memory struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (m *Memory) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}
