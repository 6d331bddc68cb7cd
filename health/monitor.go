package health

import (
	"sort"
	"sync"
	"time"
)

// Checker reports a component's current status on demand.
type Checker func() Status

// Monitor tracks health of multiple components in a thread-safe manner
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checkers map[string]Checker
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker polled by Check. A nil checker removes it.
func (m *Monitor) Register(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if check == nil {
		delete(m.checkers, name)
		return
	}
	m.checkers[name] = check
}

// Update records the status for a named component
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateLocked(name, status)
}

func (m *Monitor) updateLocked(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// Get retrieves the last recorded status for a named component
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// Remove forgets a component and its checker
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
	delete(m.checkers, name)
}

// Check runs every registered checker, records the results and returns
// the aggregate over all known components, ordered by name.
func (m *Monitor) Check(system string) Status {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	// Checkers run without the lock; they may take their own.
	results := make(map[string]Status, len(checkers))
	for name, c := range checkers {
		results[name] = c()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, st := range results {
		m.updateLocked(name, st)
	}

	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make([]Status, 0, len(names))
	for _, name := range names {
		subs = append(subs, m.statuses[name])
	}
	return Aggregate(system, subs)
}
