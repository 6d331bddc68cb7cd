package notify

import (
	"github.com/google/uuid"

	"github.com/raceant/scull/pipe"
)

// Multi forwards events, and observer changes where supported, to each
// notifier in order.
type Multi []pipe.Notifier

// NewMulti drops nil entries.
func NewMulti(notifiers ...pipe.Notifier) Multi {
	m := make(Multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

// NotifyDataAvailable implements pipe.Notifier.
func (m Multi) NotifyDataAvailable(ev pipe.Event) {
	for _, n := range m {
		n.NotifyDataAvailable(ev)
	}
}

// ObserverAdded implements pipe.ObserverListener.
func (m Multi) ObserverAdded(name string, id uuid.UUID) {
	for _, n := range m {
		if l, ok := n.(pipe.ObserverListener); ok {
			l.ObserverAdded(name, id)
		}
	}
}

// ObserverRemoved implements pipe.ObserverListener.
func (m Multi) ObserverRemoved(name string, id uuid.UUID) {
	for _, n := range m {
		if l, ok := n.(pipe.ObserverListener); ok {
			l.ObserverRemoved(name, id)
		}
	}
}
