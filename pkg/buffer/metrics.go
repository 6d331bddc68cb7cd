package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raceant/scull/metric"
)

// Metrics exports Statistics for one pipe to Prometheus.
type Metrics struct {
	bytesWritten prometheus.Counter
	bytesRead    prometheus.Counter
	wouldBlocks  prometheus.Counter
	waits        prometheus.Counter
	allocations  prometheus.Counter

	fill        prometheus.Gauge
	utilization prometheus.Gauge
}

// NewMetrics creates and registers ring metrics labelled with the pipe name.
func NewMetrics(registry *metric.MetricsRegistry, pipe string) (*Metrics, error) {
	labels := prometheus.Labels{"pipe": pipe}
	m := &Metrics{
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scull",
			Subsystem:   "ring",
			Name:        "bytes_written_total",
			ConstLabels: labels,
			Help:        "Total number of bytes written into the ring",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scull",
			Subsystem:   "ring",
			Name:        "bytes_read_total",
			ConstLabels: labels,
			Help:        "Total number of bytes read from the ring",
		}),
		wouldBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scull",
			Subsystem:   "ring",
			Name:        "would_block_total",
			ConstLabels: labels,
			Help:        "Total number of non-blocking calls that would have blocked",
		}),
		waits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scull",
			Subsystem:   "ring",
			Name:        "waits_total",
			ConstLabels: labels,
			Help:        "Total number of times a caller suspended waiting for data or space",
		}),
		allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scull",
			Subsystem:   "ring",
			Name:        "allocations_total",
			ConstLabels: labels,
			Help:        "Total number of ring storage allocations",
		}),
		fill: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "scull",
			Subsystem:   "ring",
			Name:        "fill_bytes",
			ConstLabels: labels,
			Help:        "Current number of buffered bytes",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "scull",
			Subsystem:   "ring",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Buffered bytes relative to usable capacity (0.0 to 1.0)",
		}),
	}

	if err := registry.RegisterCounter(pipe, "ring_bytes_written", m.bytesWritten); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(pipe, "ring_bytes_read", m.bytesRead); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(pipe, "ring_would_block", m.wouldBlocks); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(pipe, "ring_waits", m.waits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(pipe, "ring_allocations", m.allocations); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(pipe, "ring_fill", m.fill); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(pipe, "ring_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordWrite counts n written bytes and updates the fill gauges.
func (m *Metrics) RecordWrite(n, fill, usable int) {
	m.bytesWritten.Add(float64(n))
	m.UpdateFill(fill, usable)
}

// RecordRead counts n read bytes and updates the fill gauges.
func (m *Metrics) RecordRead(n, fill, usable int) {
	m.bytesRead.Add(float64(n))
	m.UpdateFill(fill, usable)
}

// RecordWouldBlock increments the would-block counter.
func (m *Metrics) RecordWouldBlock() {
	m.wouldBlocks.Inc()
}

// RecordWait increments the wait counter.
func (m *Metrics) RecordWait() {
	m.waits.Inc()
}

// RecordAllocation increments the allocation counter.
func (m *Metrics) RecordAllocation() {
	m.allocations.Inc()
}

// UpdateFill sets the fill and utilization gauges.
func (m *Metrics) UpdateFill(fill, usable int) {
	m.fill.Set(float64(fill))
	if usable > 0 {
		m.utilization.Set(float64(fill) / float64(usable))
	} else {
		m.utilization.Set(0)
	}
}
