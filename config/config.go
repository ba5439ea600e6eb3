package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Duration is a time.Duration that decodes from a JSON duration string
// such as "10s" or "2m". Bare numbers are accepted as nanoseconds for
// compatibility with machine-written configs.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("duration must be a string like \"10s\" or a number of nanoseconds, got %T", raw)
	}
}

// Config represents the complete application configuration.
type Config struct {
	Server ServerConfig `json:"server"`
	NATS   NATSConfig   `json:"nats"`
	Engine EngineConfig `json:"engine"`
	Log    LogConfig    `json:"log"`
}

// ServerConfig defines the HTTP listen addresses.
type ServerConfig struct {
	// Addr is the admin API listen address.
	Addr string `json:"addr,omitempty"`
	// MetricsPort is the Prometheus metrics listen port. Zero disables
	// the metrics server.
	MetricsPort int `json:"metrics_port,omitempty"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty"`
}

// NATSConfig defines the NATS connection settings. An empty URL disables
// NATS entirely; the admin API still works.
type NATSConfig struct {
	URL           string        `json:"url,omitempty"`
	Name          string        `json:"name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`

	// EventSubjectPrefix is the subject prefix events are consumed from;
	// the target name is the token after the prefix.
	EventSubjectPrefix string `json:"event_subject_prefix,omitempty"`
	// ResultSubjectPrefix is the subject prefix query results are
	// published to.
	ResultSubjectPrefix string `json:"result_subject_prefix,omitempty"`
}

// TargetConfig declares a target opened at startup.
type TargetConfig struct {
	Name string `json:"name"`
	// Fields maps field names to type names. Empty means lazy.
	Fields map[string]string `json:"fields,omitempty"`
}

// QueryConfig declares a query registered at startup.
type QueryConfig struct {
	Name       string `json:"name"`
	Group      string `json:"group,omitempty"`
	Expression string `json:"expression"`
}

// EngineConfig defines orchestrator settings and startup state.
type EngineConfig struct {
	// Runtime names the CEP runtime adapter to use. The adapter must be
	// linked into the binary and registered with cep.RegisterRuntime.
	Runtime string `json:"runtime"`
	// RuntimeOptions is passed verbatim to the adapter factory.
	RuntimeOptions map[string]any `json:"runtime_options,omitempty"`
	// Extensions lists CEP extension descriptors loaded before anything
	// else.
	Extensions []string `json:"extensions,omitempty"`
	// Targets are opened in order at startup.
	Targets []TargetConfig `json:"targets,omitempty"`
	// Queries are registered in order after the targets.
	Queries []QueryConfig `json:"queries,omitempty"`
}

// LogConfig defines logging behavior.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`
	// Format is "json" or "text".
	Format string `json:"format,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":26571",
			MetricsPort:     26572,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		NATS: NATSConfig{
			Name:                "norikra",
			MaxReconnects:       -1,
			ReconnectWait:       Duration(2 * time.Second),
			EventSubjectPrefix:  "norikra.event",
			ResultSubjectPrefix: "norikra.query",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and validates a JSON configuration file. Values absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port %d is out of range", c.Server.MetricsPort)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", c.Log.Format)
	}

	if c.NATS.URL != "" {
		if c.NATS.EventSubjectPrefix == "" {
			return fmt.Errorf("nats.event_subject_prefix must not be empty when nats.url is set")
		}
		if c.NATS.ResultSubjectPrefix == "" {
			return fmt.Errorf("nats.result_subject_prefix must not be empty when nats.url is set")
		}
	}

	if c.Engine.Runtime == "" {
		return fmt.Errorf("engine.runtime must name a CEP runtime adapter")
	}

	seen := make(map[string]bool, len(c.Engine.Targets))
	for _, target := range c.Engine.Targets {
		if target.Name == "" {
			return fmt.Errorf("engine.targets entries must have a name")
		}
		if seen[target.Name] {
			return fmt.Errorf("engine.targets: duplicate target %q", target.Name)
		}
		seen[target.Name] = true
	}

	names := make(map[string]bool, len(c.Engine.Queries))
	for _, query := range c.Engine.Queries {
		if query.Name == "" || query.Expression == "" {
			return fmt.Errorf("engine.queries entries must have a name and an expression")
		}
		if names[query.Name] {
			return fmt.Errorf("engine.queries: duplicate query %q", query.Name)
		}
		names[query.Name] = true
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}
