package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockNATSClient is a simple in-memory NATS client for testing.
// Thread-safe for concurrent use from multiple goroutines.
type MockNATSClient struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions map[string][]func(context.Context, []byte)
	publishErr    error
	closed        bool
}

// NewMockNATSClient creates a new mock NATS client.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages:      make(map[string][][]byte),
		subscriptions: make(map[string][]func(context.Context, []byte)),
	}
}

// FailPublish makes every later Publish return err. Nil restores success.
func (c *MockNATSClient) FailPublish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// Publish records data under subject and runs matching handlers.
func (c *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.publishErr != nil {
		err := c.publishErr
		c.mu.Unlock()
		return err
	}

	msg := append([]byte(nil), data...)
	c.messages[subject] = append(c.messages[subject], msg)

	var handlers []func(context.Context, []byte)
	for pattern, hs := range c.subscriptions {
		if subjectMatches(pattern, subject) {
			handlers = append(handlers, hs...)
		}
	}
	c.mu.Unlock()

	// Handlers run outside the lock so they may publish.
	for _, handler := range handlers {
		handler(ctx, msg)
	}
	return nil
}

// Subscribe registers handler for subject, which may contain wildcards.
func (c *MockNATSClient) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	c.subscriptions[subject] = append(c.subscriptions[subject], handler)
	return nil
}

// Messages returns a copy of the messages published on subject.
func (c *MockNATSClient) Messages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([][]byte(nil), c.messages[subject]...)
}

// MessageCount returns the number of messages published on subject.
func (c *MockNATSClient) MessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// TotalMessages returns the number of messages across all subjects.
func (c *MockNATSClient) TotalMessages() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, msgs := range c.messages {
		total += len(msgs)
	}
	return total
}

// Close rejects further publishes and subscriptions.
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// subjectMatches applies NATS token matching: "*" matches one token, a
// trailing ">" matches one or more.
func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// WaitForMessageCount waits until subject has at least count messages.
func WaitForMessageCount(t *testing.T, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if client.MessageCount(subject) >= count {
			return
		}
		select {
		case <-deadline.C:
			t.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
				count, subject, client.MessageCount(subject))
			return
		case <-ticker.C:
		}
	}
}
