// Package worker provides a small generic worker pool with a bounded,
// non-blocking submit queue.
//
// Submit never waits: when the queue is full the item is dropped and
// ErrQueueFull is returned. That makes the pool safe to feed from code
// holding a lock, which is how the notify package moves network
// publishing out of a pipe's critical section:
//
//	pool := worker.NewPool(2, 256, publish,
//		worker.WithMetricsRegistry[pipe.Event](registry, "nats_notify"),
//		worker.WithErrorHandler[pipe.Event](func(ev pipe.Event, err error) {
//			logger.Warn("publish failed", "pipe", ev.Pipe, "error", err)
//		}))
//	if err := pool.Start(ctx); err != nil {
//		return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Statistics are always collected; Prometheus metrics are registered only
// when a registry is supplied.
package worker
