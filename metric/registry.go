package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/raceant/scull/errors"
)

// MetricsRegistrar defines the interface for registering per-pipe and per-pool metrics
type MetricsRegistrar interface {
	RegisterCounter(owner, metricName string, counter prometheus.Counter) error
	RegisterGauge(owner, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(owner, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(owner, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(owner, metricName string, gaugeVec *prometheus.GaugeVec) error
	Unregister(owner, metricName string) bool
}

// MetricsRegistry manages the registration and lifecycle of metrics
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

var _ MetricsRegistrar = (*MetricsRegistry)(nil)

// NewMetricsRegistry creates a new metrics registry with the core pipe metrics
func NewMetricsRegistry() *MetricsRegistry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &MetricsRegistry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	registry.Metrics = NewMetrics()
	registry.registerMetrics()

	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core pipe metrics
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// RegisterCounter registers a counter metric for an owner
func (r *MetricsRegistry) RegisterCounter(owner, metricName string, counter prometheus.Counter) error {
	return r.register(owner, metricName, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric for an owner
func (r *MetricsRegistry) RegisterGauge(owner, metricName string, gauge prometheus.Gauge) error {
	return r.register(owner, metricName, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric for an owner
func (r *MetricsRegistry) RegisterHistogram(owner, metricName string, histogram prometheus.Histogram) error {
	return r.register(owner, metricName, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a counter vector metric for an owner
func (r *MetricsRegistry) RegisterCounterVec(owner, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register(owner, metricName, "RegisterCounterVec", counterVec)
}

// RegisterGaugeVec registers a gauge vector metric for an owner
func (r *MetricsRegistry) RegisterGaugeVec(owner, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register(owner, metricName, "RegisterGaugeVec", gaugeVec)
}

func (r *MetricsRegistry) register(owner, metricName, method string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for %s", metricName, owner),
			"MetricsRegistry", method, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "MetricsRegistry", method,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", method,
			"failed to register collector with prometheus")
	}

	r.registeredMetrics[key] = collector
	return nil
}

// Unregister removes a metric from the registry
func (r *MetricsRegistry) Unregister(owner, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, metricName)

	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registeredMetrics, key)
	}

	return success
}

func (r *MetricsRegistry) registerMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.OpenHandles,
		r.Metrics.Opens,
		r.Metrics.StorageAllocated,
		r.Metrics.Errors,
		r.Metrics.WaitDuration,
		r.Metrics.Notifications,
		r.Metrics.NATSConnected,
	)
}
