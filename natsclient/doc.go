// Package natsclient manages the NATS connection scull publishes pipe
// events on, with a circuit breaker around connection attempts.
//
// Connection states move Disconnected → Connecting → Connected, then
// Reconnecting and back while the nats.go client recovers on its own.
// After a run of failed Connect calls (five by default) the breaker opens:
// Connect fails fast with ErrCircuitOpen until the backoff elapses, and the
// backoff doubles on each further round of failures up to a ceiling.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithLogger(logger),
//		natsclient.WithMetrics(registry))
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "scull.scullpipe0.readable", data)
//
// Health reports the connection as a health.Status, and WithMetrics keeps
// the scull_nats_connected gauge current.
package natsclient
