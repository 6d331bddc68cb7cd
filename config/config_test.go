package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceant/scull/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	return l
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Pipes.Count)
	assert.Equal(t, 4000, cfg.Pipes.BufferSize)
	assert.Equal(t, "scullpipe", cfg.Pipes.NamePrefix)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := newTestLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "scull.yaml", `
pipes:
  count: 2
  buffer_size: 16
nats:
  enabled: true
  urls: ["nats://a:4222", "nats://b:4222"]
  publish_timeout: 500ms
  rate_limit: 10.5
log:
  level: debug
  format: json
`)
	l := newTestLoader(nil)
	l.EnableValidation(true)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Pipes.Count)
	assert.Equal(t, 16, cfg.Pipes.BufferSize)
	assert.Equal(t, "scullpipe", cfg.Pipes.NamePrefix, "unset keys keep defaults")
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://a:4222,nats://b:4222", cfg.NATS.URL())
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.PublishTimeout)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
	assert.InDelta(t, 10.5, cfg.NATS.RateLimit, 0.001)
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)
}

func TestLoad_LayersMerge(t *testing.T) {
	base := writeFile(t, "base.json", `{"pipes": {"count": 8, "name_prefix": "p"}, "log": {"level": "warn"}}`)
	override := writeFile(t, "override.yml", "pipes:\n  count: 3\n")

	l := newTestLoader(nil)
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipes.Count)
	assert.Equal(t, "p", cfg.Pipes.NamePrefix)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_SchemaRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", `{"pipes": {"count": 2, "colour": "red"}}`},
		{"unknown section", `{"storage": {}}`},
		{"wrong type", `{"pipes": {"count": "four"}}`},
		{"zero count", `{"pipes": {"count": 0}}`},
		{"tiny buffer", `{"pipes": {"buffer_size": 1}}`},
		{"bad duration", `{"nats": {"publish_timeout": "soon"}}`},
		{"bad level", `{"log": {"level": "loud"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "c.json", tt.content)
			_, err := newTestLoader(nil).LoadFile(path)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := newTestLoader(nil).LoadFile(writeFile(t, "c.toml", "x = 1"))
	assert.Error(t, err)

	_, err = newTestLoader(nil).LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = newTestLoader(nil).LoadFile(writeFile(t, "c.json", `{"pipes": `))
	assert.Error(t, err)

	_, err = newTestLoader(nil).LoadFile("../../etc/scull.json")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	l := newTestLoader(map[string]string{
		"SCULL_PIPE_COUNT":    "6",
		"SCULL_PIPE_BUFFER":   "128",
		"SCULL_NATS_ENABLED":  "true",
		"SCULL_NATS_URLS":     "nats://x:1,nats://y:2",
		"SCULL_LOG_LEVEL":     "error",
		"SCULL_METRICS_PORT":  "",
		"SCULL_NATS_PASSWORD": "secret",
	})
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Pipes.Count)
	assert.Equal(t, 128, cfg.Pipes.BufferSize)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, []string{"nats://x:1", "nats://y:2"}, cfg.NATS.URLs)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Metrics.Port, "empty values are ignored")
	assert.Equal(t, "secret", cfg.NATS.Password)
}

func TestLoad_EnvOverrideErrors(t *testing.T) {
	_, err := newTestLoader(map[string]string{"SCULL_PIPE_COUNT": "many"}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCULL_PIPE_COUNT")

	_, err = newTestLoader(map[string]string{"SCULL_NATS_TOKEN": "a\x00b"}).Load()
	assert.Error(t, err)

	l := newTestLoader(map[string]string{"SCULL_PIPE_BUFFER": "1"})
	l.EnableValidation(true)
	_, err = l.Load()
	assert.True(t, stderrors.Is(err, errors.ErrInvalidCapacity), "got %v", err)
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	l := newTestLoader(map[string]string{"PIPES_PIPE_COUNT": "9"})
	l.SetEnvPrefix("PIPES")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Pipes.Count)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }},
		{"nats without urls", func(c *Config) { c.NATS.Enabled = true; c.NATS.URLs = nil }},
		{"nats token and user", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.Token = "t"
			c.NATS.Username = "u"
		}},
		{"nats wildcard prefix", func(c *Config) { c.NATS.Enabled = true; c.NATS.SubjectPrefix = "scull.*" }},
		{"nats workers", func(c *Config) { c.NATS.Enabled = true; c.NATS.Workers = 0 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"pipes", func(c *Config) { c.Pipes.NamePrefix = "" }},
		{"metrics tls without cert", func(c *Config) { c.Metrics.TLS.Enabled = true }},
		{"nats tls version", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.TLS.Enabled = true
			c.NATS.TLS.MinVersion = "1.0"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "got %v", err)
		})
	}

	cfg := Default()
	cfg.NATS.Enabled = true
	cfg.NATS.SubjectPrefix = "site.scull."
	assert.NoError(t, cfg.Validate(), "trailing dot is trimmed")
}

func TestLoad_TLSSections(t *testing.T) {
	path := writeFile(t, "tls.yaml", `
metrics:
  tls:
    enabled: true
    cert_file: /etc/scull/cert.pem
    key_file: /etc/scull/key.pem
    min_version: "1.3"
nats:
  tls:
    enabled: true
    ca_files: [/etc/scull/ca.pem]
`)
	cfg, err := newTestLoader(nil).LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Metrics.TLS.Enabled)
	assert.Equal(t, "1.3", cfg.Metrics.TLS.MinVersion)
	assert.Equal(t, []string{"/etc/scull/ca.pem"}, cfg.NATS.TLS.CAFiles)

	clone := cfg.Clone()
	clone.NATS.TLS.CAFiles[0] = "other"
	assert.Equal(t, "/etc/scull/ca.pem", cfg.NATS.TLS.CAFiles[0])

	_, err = newTestLoader(nil).LoadFile(writeFile(t, "bad.json", `{"nats": {"tls": {"min_version": "1.1"}}}`))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNATSConfig_Notifier(t *testing.T) {
	cfg := Default()
	cfg.NATS.RateLimit = 5
	cfg.NATS.Burst = 2
	n := cfg.NATS.Notifier()
	assert.Equal(t, "scull", n.SubjectPrefix)
	assert.Equal(t, 5.0, n.RateLimit)
	assert.Equal(t, 2, n.Burst)
	assert.Equal(t, cfg.NATS.PublishTimeout, n.PublishTimeout)
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "tok"
	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "\"tok\"")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "hunter2", cfg.NATS.Password, "original untouched")
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Pipes.Count = 7
			cfg.NATS.PublishTimeout = 750 * time.Millisecond

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveToFile(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			loaded, err := newTestLoader(nil).LoadFile(path)
			require.NoError(t, err)
			if diff := cmp.Diff(cfg, loaded); diff != "" {
				t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
			}
		})
	}

	data, err := os.ReadFile(func() string {
		path := filepath.Join(t.TempDir(), "human.yaml")
		require.NoError(t, Default().SaveToFile(path))
		return path
	}())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "publish_timeout: 2s"), string(data))
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(nil)
	got := sc.Get()
	got.NATS.URLs[0] = "changed"
	assert.NotEqual(t, "changed", sc.Get().NATS.URLs[0], "Get returns a copy")

	assert.Error(t, sc.Update(nil))
	bad := Default()
	bad.Pipes.Count = 0
	assert.Error(t, sc.Update(bad))

	next := Default()
	next.Pipes.Count = 2
	require.NoError(t, sc.Update(next))
	assert.Equal(t, 2, sc.Get().Pipes.Count)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = sc.Get()
				return
			}
			c := Default()
			c.Pipes.Count = i
			_ = sc.Update(c)
		}(i)
	}
	wg.Wait()
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": "[[[{{{", "b": [1, {"c": "\"}"}]}`)))
	assert.Error(t, validateJSONDepth([]byte(strings.Repeat("[", maxJSONDepth+1)+strings.Repeat("]", maxJSONDepth+1))))
	assert.Error(t, validateJSONDepth([]byte(`{"a": 1}}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": [1}`)))
}

func TestSchema_Embedded(t *testing.T) {
	assert.Contains(t, string(Schema()), `"pipes"`)
	assert.NoError(t, ValidateDocument(map[string]any{}))
}
