// Package buffer provides the byte ring behind every pipe, plus the
// statistics and optional Prometheus metrics that describe it.
//
// # Ring
//
// Ring is a fixed-capacity byte array with a read cursor and a write
// cursor. It is empty when the cursors are equal and is never allowed to
// become completely full, so a ring of capacity C holds at most C-1 bytes:
//
//	r, _ := buffer.NewRing(8)
//	r.Write([]byte("ABCDE"))  // 5
//	r.DataAvailable()         // 5
//	r.SpaceFree()             // 2
//
// SpaceFree()+DataAvailable() is always Cap()-1. Writes and reads that run
// past the end of the array are split into two copies; the cursors wrap
// modulo Cap().
//
// Ring does no locking. The pipe package calls it only while holding the
// instance gate.
//
// # Observability
//
// Statistics are always collected with atomic counters and need no
// configuration. Metrics mirror them into Prometheus when a
// metric.MetricsRegistry is supplied:
//
//	m, err := buffer.NewMetrics(registry, "pipe0")
//	m.RecordWrite(n, fill, usable)
//
// Both are kept so Statistics stay available in tests and minimal
// deployments without a registry.
package buffer
