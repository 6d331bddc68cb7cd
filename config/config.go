package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/notify"
	"github.com/raceant/scull/pkg/tlsutil"
	"github.com/raceant/scull/registry"
)

// Log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the complete application configuration.
type Config struct {
	Pipes   registry.Config `json:"pipes"`
	Metrics MetricsConfig   `json:"metrics"`
	NATS    NATSConfig      `json:"nats"`
	Log     LogConfig       `json:"log"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool                 `json:"enabled"`
	Port    int                  `json:"port"`
	Path    string               `json:"path"`
	TLS     tlsutil.ServerConfig `json:"tls"`
}

// NATSConfig defines the NATS connection and the data-available notifier.
type NATSConfig struct {
	Enabled       bool                 `json:"enabled"`
	URLs          []string             `json:"urls,omitempty"`
	Username      string               `json:"username,omitempty"`
	Password      string               `json:"password,omitempty"`
	Token         string               `json:"token,omitempty"`
	MaxReconnects int                  `json:"max_reconnects"`
	ReconnectWait time.Duration        `json:"reconnect_wait"`
	TLS           tlsutil.ClientConfig `json:"tls"`

	SubjectPrefix  string        `json:"subject_prefix"`
	Workers        int           `json:"workers"`
	QueueSize      int           `json:"queue_size"`
	RateLimit      float64       `json:"rate_limit"`
	Burst          int           `json:"burst"`
	PublishTimeout time.Duration `json:"publish_timeout"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	n := notify.DefaultNATSConfig()
	return &Config{
		Pipes: registry.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			SubjectPrefix:  n.SubjectPrefix,
			Workers:        n.Workers,
			QueueSize:      n.QueueSize,
			PublishTimeout: n.PublishTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Pipes.Validate(); err != nil {
		return err
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
			return invalid("metrics port %d out of range", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics path %q must start with /", c.Metrics.Path)
		}
		if err := c.Metrics.TLS.Validate(); err != nil {
			return err
		}
	}

	if c.NATS.Enabled {
		if len(c.NATS.URLs) == 0 {
			return invalid("nats enabled without urls")
		}
		if c.NATS.Token != "" && c.NATS.Username != "" {
			return invalid("nats token and username are mutually exclusive")
		}
		prefix := strings.TrimSuffix(c.NATS.SubjectPrefix, ".")
		if prefix == "" {
			return invalid("nats subject prefix is empty")
		}
		for _, part := range strings.Split(prefix, ".") {
			if !isValidNATSSubjectPart(part) {
				return invalid("invalid nats subject prefix %q", c.NATS.SubjectPrefix)
			}
		}
		if c.NATS.Workers <= 0 || c.NATS.QueueSize <= 0 {
			return invalid("nats workers and queue size must be positive")
		}
		if c.NATS.RateLimit < 0 || c.NATS.Burst < 0 {
			return invalid("nats rate limit and burst must not be negative")
		}
		if err := c.NATS.TLS.Validate(); err != nil {
			return err
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return invalid("unknown log format %q", c.Log.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "check configuration")
}

// isValidNATSSubjectPart rejects empty tokens, wildcards and whitespace.
func isValidNATSSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch r {
		case '*', '>', ' ', '\t', '\r', '\n', '.':
			return false
		}
	}
	return true
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, invalid("unknown log level %q", s)
	}
}

// Notifier converts the NATS section into notifier settings.
func (n NATSConfig) Notifier() notify.NATSConfig {
	return notify.NATSConfig{
		SubjectPrefix:  n.SubjectPrefix,
		Workers:        n.Workers,
		QueueSize:      n.QueueSize,
		RateLimit:      n.RateLimit,
		Burst:          n.Burst,
		PublishTimeout: n.PublishTimeout,
	}
}

// URL joins the configured servers the way nats.Connect expects.
func (n NATSConfig) URL() string {
	return strings.Join(n.URLs, ",")
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	clone := *c
	clone.NATS.URLs = append([]string(nil), c.NATS.URLs...)
	clone.NATS.TLS = c.NATS.TLS.Clone()
	clone.Metrics.TLS = c.Metrics.TLS.Clone()
	return &clone
}

// String returns a JSON representation with credentials redacted.
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "[REDACTED]"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg.Clone()
	return nil
}
