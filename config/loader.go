package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "SCULL"

// durationFields may be written as "2s" in files; they decode as nanoseconds.
var durationFields = map[string][]string{
	"nats": {"reconnect_wait", "publish_timeout"},
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation turns on Config.Validate after loading.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the prefix of environment overrides.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges the defaults, every layer and the environment, in that order.
// The merged document is checked against the schema before decoding.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	for _, path := range l.layers {
		layer, err := readDocument(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		merged = deepMergeMaps(merged, layer)
	}

	if err := ValidateDocument(merged); err != nil {
		return nil, err
	}
	if err := parseDurations(merged); err != nil {
		return nil, err
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode merged config: %w", err)
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func readDocument(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{}
	switch f {
	case formatJSON:
		if err := validateJSONDepth(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	}
	removeNilValues(doc)
	return doc, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return m, nil
}

// deepMergeMaps merges override into base. Nested objects merge, anything
// else is replaced.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := result[k].(map[string]any); ok {
				result[k] = deepMergeMaps(bv, ov)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func removeNilValues(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			removeNilValues(val)
		}
	}
}

// parseDurations rewrites duration strings as nanosecond counts.
func parseDurations(doc map[string]any) error {
	for section, keys := range durationFields {
		sub, ok := doc[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			s, ok := sub[key].(string)
			if !ok {
				continue
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return invalid("%s.%s: %v", section, key, err)
			}
			sub[key] = int64(d)
		}
	}
	return nil
}

// formatDurations is the inverse of parseDurations, used when saving.
func formatDurations(doc map[string]any) {
	for section, keys := range durationFields {
		sub, ok := doc[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			if n, ok := sub[key].(float64); ok {
				sub[key] = time.Duration(n).String()
			}
		}
	}
}

// applyEnvOverrides applies SCULL_* variables on top of the loaded files.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	var errs []string

	str := func(name string, dst *string) {
		if val, ok := l.env(name, &errs); ok {
			*dst = val
		}
	}
	num := func(name string, dst *int) {
		if val, ok := l.env(name, &errs); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s_%s: %v", l.envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if val, ok := l.env(name, &errs); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s_%s: %v", l.envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	num("PIPE_COUNT", &cfg.Pipes.Count)
	num("PIPE_BUFFER", &cfg.Pipes.BufferSize)
	str("PIPE_PREFIX", &cfg.Pipes.NamePrefix)

	flag("METRICS_ENABLED", &cfg.Metrics.Enabled)
	num("METRICS_PORT", &cfg.Metrics.Port)

	flag("NATS_ENABLED", &cfg.NATS.Enabled)
	if val, ok := l.env("NATS_URLS", &errs); ok {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	str("NATS_USERNAME", &cfg.NATS.Username)
	str("NATS_PASSWORD", &cfg.NATS.Password)
	str("NATS_TOKEN", &cfg.NATS.Token)
	str("NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if len(errs) > 0 {
		return invalid("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (l *Loader) env(name string, errs *[]string) (string, bool) {
	key := l.envPrefix + "_" + name
	val, ok := l.lookupEnv(key)
	if !ok || val == "" {
		return "", false
	}
	if err := validateEnvVar(key, val); err != nil {
		*errs = append(*errs, err.Error())
		return "", false
	}
	return val, true
}

// SaveToFile writes the configuration as JSON or YAML, chosen by extension.
func (c *Config) SaveToFile(path string) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch f {
	case formatJSON:
		data, err = json.MarshalIndent(c, "", "  ")
	case formatYAML:
		var doc map[string]any
		if doc, err = toMap(c); err == nil {
			formatDurations(doc)
			data, err = yaml.Marshal(doc)
		}
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return safeWriteFile(path, data)
}
