// Package scull provides scullpipe devices: a fixed set of named, in-memory
// FIFO byte pipes that any number of readers and writers can open, read,
// write and poll concurrently.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        cmd/scullpipe                │  relay, bench, validate
//	│   (flags, config, logging, TLS)     │  metrics and health endpoint
//	└─────────────────────────────────────┘
//	           ↓ opens pipes through
//	┌─────────────────────────────────────┐
//	│           registry                  │  scullpipe0..N-1
//	│  (lookup, status, resize, close)    │  health check
//	└─────────────────────────────────────┘
//	           ↓ owns
//	┌─────────────────────────────────────┐
//	│             pipe                    │  gate, signals, handles
//	│  (open, read, write, poll, close)   │  pkg/buffer ring storage
//	└─────────────────────────────────────┘
//	           ↓ reports writes to
//	┌─────────────────────────────────────┐
//	│            notify                   │  channel, log, NATS
//	│  (async data-available events)      │  pkg/worker publish pool
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - pipe: the pipe device and its handles
//   - registry: the fixed-size set of pipes created at startup
//   - notify: data-available notifiers for handles in async mode
//   - config: layered JSON/YAML configuration with schema validation
//   - errors: error classification (transient, invalid, fatal) and sentinels
//   - metric: Prometheus metrics and the HTTP endpoint
//   - health: component health aggregation
//   - natsclient: NATS connection management with a circuit breaker
//   - pkg/buffer: the byte ring used as pipe storage
//   - pkg/worker: the bounded worker pool behind the NATS notifier
//   - pkg/retry: backoff for non-blocking writers
//   - pkg/tlsutil: TLS settings for NATS and the metrics server
//   - testutil: NATS test doubles and a containerised server
//
// # Quick Start
//
//	reg, _ := registry.New(registry.DefaultConfig(), logger)
//	defer reg.Close()
//
//	p, _ := reg.Lookup("scullpipe0")
//	w, _ := p.Open(ctx, pipe.ModeWrite)
//	r, _ := p.Open(ctx, pipe.ModeRead)
//
// The scullpipe command wires the same pieces from a configuration file:
//
//	scullpipe --config scull.yaml --mode relay < input > output
package scull
