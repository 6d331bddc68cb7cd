// Package metric provides the Prometheus registry and HTTP server used to
// observe scull pipes.
//
// The registry carries two layers:
//
//  1. Core Metrics: handle counts, opens, allocated storage, errors by kind,
//     wait durations and notification outcomes (Metrics type)
//  2. Per-owner registration: components such as the ring statistics of each
//     pipe register their own collectors through MetricsRegistrar
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//	server.Handle("/pipes", pipesHandler)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        slog.Error("metrics server failed", "error", err)
//	    }
//	}()
//
//	registry.CoreMetrics().RecordError("pipe0", "write", "channel_broken")
//
// Registering the same owner/metric pair twice returns an Invalid error.
package metric
