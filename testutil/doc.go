// Package testutil provides helpers shared by scull tests.
//
// MockNATSClient is an in-memory stand-in for natsclient.Client's
// Publish and Subscribe methods. It records every message, delivers to
// handlers whose subject pattern matches (NATS "*" and ">" wildcards
// included), and can be told to fail publishes:
//
//	client := testutil.NewMockNATSClient()
//	notifier, _ := notify.NewNATS(client, notify.DefaultNATSConfig())
//	...
//	testutil.WaitForMessageCount(t, client, "scull.scullpipe0.readable", 1, time.Second)
//
// StartNATS runs a real NATS server in a container through
// testcontainers-go. It is meant for tests behind the integration build
// tag and skips the test when Docker is unavailable.
package testutil
