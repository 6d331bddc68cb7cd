package natsclient

import (
	"sync/atomic"
	"time"
)

const initialBackoff = time.Second

// circuit counts connection failures. Once threshold failures accumulate
// the client's status is moved to StatusCircuitOpen and a timer moves it
// back to Disconnected after the current backoff.
type circuit struct {
	failures    atomic.Int32 // total since last success
	roundFails  atomic.Int32 // failures in the current round
	lastFailure atomic.Value // time.Time
	backoff     atomic.Int64 // time.Duration

	threshold  int32
	maxBackoff time.Duration
}

const (
	defaultCircuitThreshold = 5
	defaultMaxBackoff       = time.Minute
)

func (b *circuit) currentBackoff() time.Duration {
	return time.Duration(b.backoff.Load())
}

// grow doubles the backoff up to maxBackoff and returns the previous value.
func (b *circuit) grow() time.Duration {
	prev := b.currentBackoff()
	next := prev * 2
	if next > b.maxBackoff {
		next = b.maxBackoff
	}
	b.backoff.Store(int64(next))
	return prev
}

func (b *circuit) reset() {
	b.failures.Store(0)
	b.roundFails.Store(0)
	b.backoff.Store(int64(initialBackoff))
	b.lastFailure.Store(time.Time{})
}

// recordFailure records a connection failure and manages circuit breaker
func (m *Client) recordFailure() {
	total := m.breaker.failures.Add(1)
	m.breaker.lastFailure.Store(time.Now())
	round := m.breaker.roundFails.Add(1)

	m.logger.Debug("connection failure recorded", "failures", total, "round", round)

	if round < m.breaker.threshold {
		return
	}

	current := m.Status()
	if current == StatusCircuitOpen {
		m.breaker.roundFails.Store(0)
		m.breaker.grow()
		m.logger.Warn("circuit breaker still open", "backoff", m.breaker.currentBackoff())
		return
	}

	// Only one goroutine wins the transition.
	if !m.status.CompareAndSwap(current, StatusCircuitOpen) {
		return
	}
	m.reportStatus(StatusCircuitOpen)
	m.breaker.roundFails.Store(0)
	wait := m.breaker.grow()
	m.logger.Warn("circuit breaker opened", "failures", round, "backoff", wait)
	time.AfterFunc(wait, m.testCircuit)
}

// resetCircuit resets the circuit breaker state
func (m *Client) resetCircuit() {
	m.breaker.reset()
	if m.Status() == StatusCircuitOpen {
		m.setStatus(StatusDisconnected)
	}
}

// testCircuit half-opens the circuit so the next Connect may try again.
func (m *Client) testCircuit() {
	if m.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected) {
		m.reportStatus(StatusDisconnected)
		m.logger.Debug("circuit breaker half-open")
	}
}
