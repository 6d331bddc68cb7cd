package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Run modes
const (
	modeRelay    = "relay"
	modeBench    = "bench"
	modeValidate = "validate"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	Mode            string
	Pipe            string
	NonBlocking     bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Producers int
	Consumers int
	Bytes     int
	ChunkSize int

	ShowVersion bool
	ShowHelp    bool
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("SCULLPIPE_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: SCULLPIPE_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("SCULLPIPE_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: SCULLPIPE_CONFIG)")

	fs.StringVar(&cfg.Mode, "mode",
		getEnv("SCULLPIPE_MODE", modeRelay),
		"Run mode: relay, bench, validate (env: SCULLPIPE_MODE)")

	fs.StringVar(&cfg.Pipe, "pipe",
		getEnv("SCULLPIPE_PIPE", ""),
		"Pipe to use; defaults to the first pipe (env: SCULLPIPE_PIPE)")

	fs.BoolVar(&cfg.NonBlocking, "nonblock",
		getEnvBool("SCULLPIPE_NONBLOCK", false),
		"Relay writes through a non-blocking handle with retry (env: SCULLPIPE_NONBLOCK)")

	fs.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error; overrides the config file")
	fs.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text; overrides the config file")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SCULLPIPE_SHUTDOWN_TIMEOUT", 5*time.Second),
		"Graceful shutdown timeout (env: SCULLPIPE_SHUTDOWN_TIMEOUT)")

	fs.IntVar(&cfg.Producers, "producers", getEnvInt("SCULLPIPE_PRODUCERS", 2), "Bench writer count")
	fs.IntVar(&cfg.Consumers, "consumers", getEnvInt("SCULLPIPE_CONSUMERS", 2), "Bench reader count")
	fs.IntVar(&cfg.Bytes, "bytes", getEnvInt("SCULLPIPE_BYTES", 8<<20), "Bench bytes written per producer")
	fs.IntVar(&cfg.ChunkSize, "chunk", getEnvInt("SCULLPIPE_CHUNK", 512), "Bench and relay chunk size")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	fs.Usage = func() { printDetailedHelp(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.ShowHelp {
		fs.Usage()
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	switch cfg.Mode {
	case modeRelay, modeBench, modeValidate:
	default:
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size: %d", cfg.ChunkSize)
	}
	if cfg.Mode == modeBench {
		if cfg.Producers <= 0 || cfg.Consumers <= 0 {
			return fmt.Errorf("bench needs at least one producer and one consumer")
		}
		if cfg.Bytes <= 0 {
			return fmt.Errorf("invalid byte count: %d", cfg.Bytes)
		}
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - in-memory byte pipes

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Relay stdin to stdout through scullpipe0
  cat big.log | %s > copy.log

  # Relay with a 64-byte ring and a non-blocking writer
  SCULL_PIPE_BUFFER=64 %s --nonblock < in > out

  # Four producers, two consumers
  %s --mode=bench --producers=4 --consumers=2

  # Validate configuration only
  %s --config=scull.yaml --mode=validate

Version: %s
`, appName, appName, appName, appName, Version)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
