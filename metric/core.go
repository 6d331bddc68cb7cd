package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the metrics shared by every pipe instance
type Metrics struct {
	OpenHandles      *prometheus.GaugeVec
	Opens            *prometheus.CounterVec
	StorageAllocated *prometheus.GaugeVec
	Errors           *prometheus.CounterVec
	WaitDuration     *prometheus.HistogramVec
	Notifications    *prometheus.CounterVec

	NATSConnected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		OpenHandles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "scull",
				Subsystem: "pipe",
				Name:      "open_handles",
				Help:      "Currently open handles by pipe and intent (reader, writer)",
			},
			[]string{"pipe", "role"},
		),

		Opens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scull",
				Subsystem: "pipe",
				Name:      "opens_total",
				Help:      "Total number of successful opens",
			},
			[]string{"pipe", "mode"},
		),

		StorageAllocated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "scull",
				Subsystem: "pipe",
				Name:      "storage_bytes",
				Help:      "Bytes of ring storage currently allocated (0 when no handle is open)",
			},
			[]string{"pipe"},
		),

		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scull",
				Subsystem: "pipe",
				Name:      "errors_total",
				Help:      "Total number of failed pipe calls by kind",
			},
			[]string{"pipe", "op", "kind"},
		),

		WaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scull",
				Subsystem: "pipe",
				Name:      "wait_seconds",
				Help:      "Time blocked callers spent suspended",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"pipe", "op"},
		),

		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scull",
				Subsystem: "notify",
				Name:      "events_total",
				Help:      "Data-available notifications by notifier and outcome",
			},
			[]string{"notifier", "outcome"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "scull",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

// RecordOpen counts a successful open and the handles it added
func (c *Metrics) RecordOpen(pipe, mode string, readers, writers int) {
	c.Opens.WithLabelValues(pipe, mode).Inc()
	c.SetHandles(pipe, readers, writers)
}

// SetHandles updates the open handle gauges
func (c *Metrics) SetHandles(pipe string, readers, writers int) {
	c.OpenHandles.WithLabelValues(pipe, "reader").Set(float64(readers))
	c.OpenHandles.WithLabelValues(pipe, "writer").Set(float64(writers))
}

// SetStorage records the allocated storage size for a pipe
func (c *Metrics) SetStorage(pipe string, bytes int) {
	c.StorageAllocated.WithLabelValues(pipe).Set(float64(bytes))
}

// RecordError increments the error counter
func (c *Metrics) RecordError(pipe, op, kind string) {
	c.Errors.WithLabelValues(pipe, op, kind).Inc()
}

// RecordWait records how long a caller stayed suspended
func (c *Metrics) RecordWait(pipe, op string, d time.Duration) {
	c.WaitDuration.WithLabelValues(pipe, op).Observe(d.Seconds())
}

// RecordNotification counts a notification outcome (delivered, dropped, failed)
func (c *Metrics) RecordNotification(notifier, outcome string) {
	c.Notifications.WithLabelValues(notifier, outcome).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}
