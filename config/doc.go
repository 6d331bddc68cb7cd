// Package config loads scull configuration.
//
// Configuration comes from layered JSON or YAML files merged over the
// built-in defaults, followed by SCULL_* environment overrides:
//
//	loader := config.NewLoader()
//	loader.AddLayer("scull.yaml")
//	loader.AddLayer("scull.local.json") // overrides scull.yaml
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A YAML file looks like:
//
//	pipes:
//	  count: 4
//	  buffer_size: 4000
//	metrics:
//	  port: 9090
//	nats:
//	  enabled: true
//	  urls: ["nats://localhost:4222"]
//	  publish_timeout: 2s
//
// The merged document is checked against an embedded JSON schema, so
// unknown keys are rejected. Durations may be written as Go duration
// strings or as nanosecond counts.
//
// # Environment Variable Overrides
//
//	SCULL_PIPE_COUNT, SCULL_PIPE_BUFFER, SCULL_PIPE_PREFIX
//	SCULL_METRICS_ENABLED, SCULL_METRICS_PORT
//	SCULL_NATS_ENABLED, SCULL_NATS_URLS (comma-separated)
//	SCULL_NATS_USERNAME, SCULL_NATS_PASSWORD, SCULL_NATS_TOKEN
//	SCULL_NATS_SUBJECT_PREFIX, SCULL_LOG_LEVEL, SCULL_LOG_FORMAT
//
// # Security
//
// Files are limited to 1MB, must be regular files with a .json, .yaml or
// .yml extension, and relative paths may not leave the working directory.
// JSON nesting depth is bounded before decoding.
//
// SafeConfig wraps a Config for concurrent readers; Get returns a copy.
package config
