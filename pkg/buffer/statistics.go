package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks byte-stream activity for one pipe across all of its
// storage epochs.
type Statistics struct {
	bytesWritten int64
	bytesRead    int64
	writes       int64
	reads        int64
	wouldBlocks  int64
	waits        int64
	allocations  int64
	frees        int64

	mu        sync.RWMutex
	startTime time.Time
	fill      int64
	highWater int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Write records a write call that moved n bytes.
func (s *Statistics) Write(n int) {
	atomic.AddInt64(&s.writes, 1)
	atomic.AddInt64(&s.bytesWritten, int64(n))
}

// Read records a read call that moved n bytes.
func (s *Statistics) Read(n int) {
	atomic.AddInt64(&s.reads, 1)
	atomic.AddInt64(&s.bytesRead, int64(n))
}

// WouldBlock records a non-blocking call that found its condition unmet.
func (s *Statistics) WouldBlock() {
	atomic.AddInt64(&s.wouldBlocks, 1)
}

// Wait records a blocking call suspending on a signal.
func (s *Statistics) Wait() {
	atomic.AddInt64(&s.waits, 1)
}

// Allocate records storage being obtained for a new epoch.
func (s *Statistics) Allocate() {
	atomic.AddInt64(&s.allocations, 1)
}

// Free records storage being released at the end of an epoch.
func (s *Statistics) Free() {
	atomic.AddInt64(&s.frees, 1)
}

// UpdateFill records the number of buffered bytes.
func (s *Statistics) UpdateFill(fill int) {
	s.mu.Lock()
	s.fill = int64(fill)
	if s.fill > s.highWater {
		s.highWater = s.fill
	}
	s.mu.Unlock()
}

// BytesWritten returns the total number of bytes written.
func (s *Statistics) BytesWritten() int64 {
	return atomic.LoadInt64(&s.bytesWritten)
}

// BytesRead returns the total number of bytes read.
func (s *Statistics) BytesRead() int64 {
	return atomic.LoadInt64(&s.bytesRead)
}

// Writes returns the number of write calls that moved data.
func (s *Statistics) Writes() int64 {
	return atomic.LoadInt64(&s.writes)
}

// Reads returns the number of read calls that moved data.
func (s *Statistics) Reads() int64 {
	return atomic.LoadInt64(&s.reads)
}

// WouldBlocks returns the number of would-block results.
func (s *Statistics) WouldBlocks() int64 {
	return atomic.LoadInt64(&s.wouldBlocks)
}

// Waits returns the number of times a caller suspended.
func (s *Statistics) Waits() int64 {
	return atomic.LoadInt64(&s.waits)
}

// Allocations returns the number of storage allocations.
func (s *Statistics) Allocations() int64 {
	return atomic.LoadInt64(&s.allocations)
}

// Frees returns the number of storage releases.
func (s *Statistics) Frees() int64 {
	return atomic.LoadInt64(&s.frees)
}

// Fill returns the last recorded number of buffered bytes.
func (s *Statistics) Fill() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fill
}

// HighWater returns the largest number of bytes ever buffered.
func (s *Statistics) HighWater() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highWater
}

// Throughput returns the average number of bytes written per second.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime()
	if elapsed <= 0 {
		return 0.0
	}
	return float64(s.BytesWritten()) / elapsed.Seconds()
}

// Utilization returns the fill level relative to the usable capacity (0.0 to 1.0).
func (s *Statistics) Utilization(usable int) float64 {
	if usable <= 0 {
		return 0.0
	}
	return float64(s.Fill()) / float64(usable)
}

// Uptime returns how long the statistics have been collected.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset resets all statistics to zero.
func (s *Statistics) Reset() {
	atomic.StoreInt64(&s.bytesWritten, 0)
	atomic.StoreInt64(&s.bytesRead, 0)
	atomic.StoreInt64(&s.writes, 0)
	atomic.StoreInt64(&s.reads, 0)
	atomic.StoreInt64(&s.wouldBlocks, 0)
	atomic.StoreInt64(&s.waits, 0)
	atomic.StoreInt64(&s.allocations, 0)
	atomic.StoreInt64(&s.frees, 0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.fill = 0
	s.highWater = 0
	s.mu.Unlock()
}

// StatsSummary is a point-in-time copy of Statistics.
type StatsSummary struct {
	BytesWritten int64         `json:"bytes_written"`
	BytesRead    int64         `json:"bytes_read"`
	Writes       int64         `json:"writes"`
	Reads        int64         `json:"reads"`
	WouldBlocks  int64         `json:"would_blocks"`
	Waits        int64         `json:"waits"`
	Allocations  int64         `json:"allocations"`
	Frees        int64         `json:"frees"`
	Fill         int64         `json:"fill"`
	HighWater    int64         `json:"high_water"`
	Throughput   float64       `json:"throughput"`
	Uptime       time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		BytesWritten: s.BytesWritten(),
		BytesRead:    s.BytesRead(),
		Writes:       s.Writes(),
		Reads:        s.Reads(),
		WouldBlocks:  s.WouldBlocks(),
		Waits:        s.Waits(),
		Allocations:  s.Allocations(),
		Frees:        s.Frees(),
		Fill:         s.Fill(),
		HighWater:    s.HighWater(),
		Throughput:   s.Throughput(),
		Uptime:       s.Uptime(),
	}
}
