package notify

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/raceant/scull/metric"
	"github.com/raceant/scull/pipe"
)

// Channels delivers events on one buffered channel per handle.
type Channels struct {
	buffer  int
	metrics *metric.Metrics

	mu   sync.Mutex
	subs map[uuid.UUID]chan pipe.Event

	delivered atomic.Int64
	dropped   atomic.Int64
}

var (
	_ pipe.Notifier         = (*Channels)(nil)
	_ pipe.ObserverListener = (*Channels)(nil)
)

// NewChannels creates a channel notifier whose subscriptions buffer up to
// buffer events.
func NewChannels(buffer int, opts ...Option) *Channels {
	o := applyOptions(opts...)
	if buffer <= 0 {
		buffer = 1
	}
	return &Channels{
		buffer:  buffer,
		metrics: o.metrics,
		subs:    make(map[uuid.UUID]chan pipe.Event),
	}
}

// Subscribe returns the event channel for handle id, creating it if needed.
// The channel is closed when the handle stops observing.
func (c *Channels) Subscribe(id uuid.UUID) <-chan pipe.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.subs[id]
	if !ok {
		ch = make(chan pipe.Event, c.buffer)
		c.subs[id] = ch
	}
	return ch
}

// Unsubscribe closes and forgets the channel for id.
func (c *Channels) Unsubscribe(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

// NotifyDataAvailable sends ev to every subscribed handle it names.
func (c *Channels) NotifyDataAvailable(ev pipe.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ev.Handles {
		ch, ok := c.subs[id]
		if !ok {
			continue
		}
		select {
		case ch <- ev:
			c.delivered.Add(1)
			c.record("delivered")
		default:
			c.dropped.Add(1)
			c.record("dropped")
		}
	}
}

// ObserverAdded implements pipe.ObserverListener.
func (c *Channels) ObserverAdded(string, uuid.UUID) {}

// ObserverRemoved closes the handle's subscription.
func (c *Channels) ObserverRemoved(_ string, id uuid.UUID) {
	c.Unsubscribe(id)
}

// Delivered returns the number of events sent to subscribers.
func (c *Channels) Delivered() int64 { return c.delivered.Load() }

// Dropped returns the number of events discarded because a subscriber's
// buffer was full.
func (c *Channels) Dropped() int64 { return c.dropped.Load() }

func (c *Channels) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordNotification("channels", outcome)
	}
}
