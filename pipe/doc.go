// Package pipe implements scullpipe: a named, in-memory FIFO byte channel
// shared by any number of reader and writer handles.
//
// # Overview
//
// A Pipe owns a byte ring (see pkg/buffer) that exists only while at least
// one handle is open. The first Open allocates it with the currently
// configured capacity; the last Close releases it. Every state change runs
// under a per-pipe gate, and callers that cannot proceed wait on one of two
// broadcast signals:
//
//   - data ready: broadcast after every write and when a writer leaves
//   - space ready: broadcast after every read and when a reader leaves
//
// # Quick Start
//
//	p, _ := pipe.New("scullpipe0", pipe.WithCapacity(4000))
//
//	w, _ := p.Open(ctx, pipe.ModeWrite)
//	r, _ := p.Open(ctx, pipe.ModeRead)
//
//	go func() {
//		defer w.Close()
//		w.Write([]byte("hello"))
//	}()
//
//	data, _ := io.ReadAll(r) // "hello", then io.EOF once w is closed
//
// # Blocking and Cancellation
//
// Read and Write wait as long as needed. ReadContext and WriteContext give
// up when the context ends and return an error matching
// errors.ErrCancelled. A handle opened WithNonBlocking, or switched with
// SetNonBlocking, returns errors.ErrWouldBlock instead of waiting.
//
// Reading an empty pipe that has no writers returns io.EOF. Writing to a
// full pipe that has no readers returns errors.ErrChannelBroken; until the
// ring fills, writes succeed whether or not a reader is attached.
//
// Poll reports Readable and Writable from the ring alone. HangUp and Broken
// flag the missing writer or reader, much like POLLHUP and POLLERR.
//
// # Notification
//
// Handles that call SetAsync(true) are reported to the pipe's Notifier after
// each write. The notifier runs inside the critical section, so it must hand
// the event off without blocking; the notify package provides channel, log
// and NATS implementations.
package pipe
