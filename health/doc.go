// Package health tracks the health of scull's moving parts (the pipe set,
// the NATS connection) and serves the aggregate over HTTP.
//
// A Status is healthy, degraded or unhealthy. Aggregate folds sub-statuses
// into one: any unhealthy child makes the parent unhealthy, otherwise any
// degraded child makes it degraded.
//
// Monitor holds the latest status per component. Components either push
// updates with Update, or register a Checker that is polled on every Check:
//
//	monitor := health.NewMonitor()
//	monitor.Register("pipes", registry.Health)
//	server.Handle("/health", health.Handler(monitor, "scull"))
//
// Error text placed in a status through FromError is scrubbed of URLs,
// paths, addresses and credentials before it is exposed.
package health
