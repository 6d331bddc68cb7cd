package natsclient

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/raceant/scull/metric"
)

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client) error

// WithMaxReconnects sets the maximum number of reconnection attempts (-1 for infinite)
func WithMaxReconnects(max int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait between reconnection attempts
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.reconnectWait = d
		return nil
	}
}

// WithPingInterval sets the server ping interval
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.pingInterval = d
		return nil
	}
}

// WithHealthInterval sets how often the connection is probed. Zero disables
// probing.
func WithHealthInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.healthInterval = d
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithHealthChangeCallback is called, on its own goroutine, whenever the
// connection becomes healthy or unhealthy.
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// WithCircuitBreakerThreshold sets how many consecutive failures open the circuit
func WithCircuitBreakerThreshold(threshold int32) ClientOption {
	return func(c *Client) error {
		if threshold <= 0 {
			return fmt.Errorf("circuit breaker threshold must be positive, got %d", threshold)
		}
		c.breaker.threshold = threshold
		return nil
	}
}

// WithMaxBackoff caps the circuit breaker backoff
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("max backoff must be positive, got %v", d)
		}
		c.breaker.maxBackoff = d
		return nil
	}
}

// WithCredentials sets user/password authentication
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithName sets the client name reported to the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithTimeout sets the connection timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds how long Close waits for pending messages
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.drainTimeout = d
		return nil
	}
}

// WithMetrics reports connection state through the registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry != nil {
			c.metrics = registry.CoreMetrics()
		}
		return nil
	}
}

// WithTLSConfig secures the connection. A nil config leaves it plain.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) error {
		if cfg != nil {
			c.tlsConfig = cfg.Clone()
		}
		return nil
	}
}
