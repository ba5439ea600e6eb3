package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// validConfig is a Default() with the one field that has no sensible
// default filled in.
func validConfig() *Config {
	cfg := Default()
	cfg.Engine.Runtime = "fake"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":26571", cfg.Server.Addr)
	assert.Equal(t, 26572, cfg.Server.MetricsPort)
	assert.Equal(t, "norikra.event", cfg.NATS.EventSubjectPrefix)
	assert.Equal(t, "norikra.query", cfg.NATS.ResultSubjectPrefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"addr": ":9000"},
		"nats": {"url": "nats://localhost:4222"},
		"log": {"level": "debug", "format": "text"},
		"engine": {
			"runtime": "fake",
			"targets": [{"name": "visit", "fields": {"path": "string", "status": "integer"}}],
			"queries": [{"name": "q1", "expression": "select count(*) from visit"}]
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 26572, cfg.Server.MetricsPort, "unset values keep defaults")
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Engine.Targets, 1)
	assert.Equal(t, "visit", cfg.Engine.Targets[0].Name)
	require.Len(t, cfg.Engine.Queries, 1)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"shutdown_timeout": "30s"},
		"nats": {"reconnect_wait": 500000000},
		"engine": {"runtime": "fake"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.ReconnectWait.Std(), "bare numbers are nanoseconds")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"shutdown_timeout": "soon"},
		"engine": {"runtime": "fake"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `{"serverr": {"addr": ":9000"}}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"missing runtime adapter", func(c *Config) { c.Engine.Runtime = "" }},
		{"negative shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = Duration(-time.Second) }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"metrics port out of range", func(c *Config) { c.Server.MetricsPort = 70000 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"nats without event prefix", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.EventSubjectPrefix = ""
		}},
		{"unnamed target", func(c *Config) {
			c.Engine.Targets = []TargetConfig{{Name: ""}}
		}},
		{"duplicate target", func(c *Config) {
			c.Engine.Targets = []TargetConfig{{Name: "a"}, {Name: "a"}}
		}},
		{"query without expression", func(c *Config) {
			c.Engine.Queries = []QueryConfig{{Name: "q"}}
		}},
		{"duplicate query", func(c *Config) {
			c.Engine.Queries = []QueryConfig{
				{Name: "q", Expression: "x"},
				{Name: "q", Expression: "y"},
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Targets = []TargetConfig{{Name: "visit", Fields: map[string]string{"path": "string"}}}

	clone := cfg.Clone()
	clone.Engine.Targets[0].Fields["path"] = "integer"
	clone.Server.Addr = ":1"

	assert.Equal(t, "string", cfg.Engine.Targets[0].Fields["path"])
	assert.Equal(t, ":26571", cfg.Server.Addr)
}
