package pipe

import (
	"time"

	"github.com/google/uuid"
)

// Event describes a data-available transition delivered to a Notifier.
type Event struct {
	Pipe      string      `json:"pipe"`
	Handles   []uuid.UUID `json:"handles"`
	Available int         `json:"available"`
	Time      time.Time   `json:"time"`
}

// Notifier receives data-available events for handles with async
// notification enabled. It is called with the pipe gate held and must not
// block or call back into the pipe.
type Notifier interface {
	NotifyDataAvailable(ev Event)
}

// ObserverListener is implemented by notifiers that keep per-handle state.
// Both methods run with the pipe gate held.
type ObserverListener interface {
	ObserverAdded(pipe string, id uuid.UUID)
	ObserverRemoved(pipe string, id uuid.UUID)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ev Event)

// NotifyDataAvailable calls f(ev).
func (f NotifierFunc) NotifyDataAvailable(ev Event) { f(ev) }

// addObserverLocked registers h. Caller holds the gate.
func (p *Pipe) addObserverLocked(h *Handle) {
	for _, id := range p.observers {
		if id == h.id {
			return
		}
	}
	p.observers = append(p.observers, h.id)
	if l, ok := p.notifier.(ObserverListener); ok {
		l.ObserverAdded(p.name, h.id)
	}
}

// removeObserverLocked deregisters h if present. Caller holds the gate.
func (p *Pipe) removeObserverLocked(h *Handle) {
	for i, id := range p.observers {
		if id != h.id {
			continue
		}
		p.observers = append(p.observers[:i], p.observers[i+1:]...)
		if l, ok := p.notifier.(ObserverListener); ok {
			l.ObserverRemoved(p.name, h.id)
		}
		return
	}
}

// notifyLocked informs the notifier after a write. Caller holds the gate.
func (p *Pipe) notifyLocked() {
	if p.notifier == nil || len(p.observers) == 0 {
		return
	}
	handles := make([]uuid.UUID, len(p.observers))
	copy(handles, p.observers)
	p.notifier.NotifyDataAvailable(Event{
		Pipe:      p.name,
		Handles:   handles,
		Available: p.ring.DataAvailable(),
		Time:      time.Now(),
	})
}
