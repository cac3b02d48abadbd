// Package config holds the file-driven runtime configuration for the upload
// service. Values load from YAML, merge over defaults, and are normalized
// before use so the rest of the codebase never sees untrimmed or unset
// fields.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SereneyePro/rrweb-uploader/merge"
)

const (
	defaultAddr          = ":8080"
	defaultIdleTimeout   = 30 * time.Minute
	defaultSweepInterval = time.Minute
	defaultStoragePath   = "recordings.db"
)

// Duration wraps time.Duration so YAML values can use human readable forms
// like "30m" or "90s".
type Duration time.Duration

// UnmarshalYAML parses a duration string via time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30m\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Std returns the plain time.Duration value.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds initialization parameters for all service subsystems.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Timeline TimelineConfig `yaml:"timeline"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener and its access controls.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	SharedSecret string `yaml:"shared_secret"`
	// SharedSecretEnv names an environment variable to read the secret from
	// when shared_secret is not set inline. Keeps secrets out of config files.
	SharedSecretEnv string   `yaml:"shared_secret_env"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// SessionConfig configures the in-memory session registry.
type SessionConfig struct {
	IdleTimeout   Duration `yaml:"idle_timeout"`
	SweepInterval Duration `yaml:"sweep_interval"`
	Strict        bool     `yaml:"strict"`
}

// TimelineConfig configures how chunk recordings are stitched together when
// merged.
type TimelineConfig struct {
	InterChunkGapMs int64 `yaml:"inter_chunk_gap_ms"`
}

// StorageConfig selects and configures the artifact backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr: defaultAddr,
		},
		Session: SessionConfig{
			IdleTimeout:   Duration(defaultIdleTimeout),
			SweepInterval: Duration(defaultSweepInterval),
		},
		Timeline: TimelineConfig{
			InterChunkGapMs: merge.DefaultGapMs,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    defaultStoragePath,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Merge applies non-zero values from source into c. Zero values in source
// preserve the receiver's settings, which lets partial config files override
// only what they mention.
func (c *Config) Merge(source *Config) {
	if source.Server.Addr != "" {
		c.Server.Addr = source.Server.Addr
	}
	if source.Server.SharedSecret != "" {
		c.Server.SharedSecret = source.Server.SharedSecret
	}
	if source.Server.SharedSecretEnv != "" {
		c.Server.SharedSecretEnv = source.Server.SharedSecretEnv
	}
	if len(source.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = source.Server.AllowedOrigins
	}

	if source.Session.IdleTimeout > 0 {
		c.Session.IdleTimeout = source.Session.IdleTimeout
	}
	if source.Session.SweepInterval > 0 {
		c.Session.SweepInterval = source.Session.SweepInterval
	}
	if source.Session.Strict {
		c.Session.Strict = true
	}

	if source.Timeline.InterChunkGapMs > 0 {
		c.Timeline.InterChunkGapMs = source.Timeline.InterChunkGapMs
	}

	if source.Storage.Backend != "" {
		c.Storage.Backend = source.Storage.Backend
	}
	if source.Storage.Path != "" {
		c.Storage.Path = source.Storage.Path
	}

	if source.Log.Level != "" {
		c.Log.Level = source.Log.Level
	}
	if source.Log.Format != "" {
		c.Log.Format = source.Log.Format
	}
}

// Load reads a YAML config file, merges it with defaults, and returns the
// normalized result. An empty path yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		cfg.normalize()
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.SharedSecret = strings.TrimSpace(c.Server.SharedSecret)
	c.Server.SharedSecretEnv = strings.TrimSpace(c.Server.SharedSecretEnv)
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Storage.Path = strings.TrimSpace(c.Storage.Path)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	if c.Server.SharedSecret == "" && c.Server.SharedSecretEnv != "" {
		c.Server.SharedSecret = strings.TrimSpace(os.Getenv(c.Server.SharedSecretEnv))
	}
}

// Validate reports configuration errors that would prevent startup.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (want memory or sqlite)", c.Storage.Backend)
	}
	if c.Timeline.InterChunkGapMs < 0 {
		return fmt.Errorf("timeline.inter_chunk_gap_ms must not be negative")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q (want json or text)", c.Log.Format)
	}
	return nil
}
