package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all host configuration.
type Config struct {
	Server      ServerConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
	Host        HostConfig
	Persistence PersistenceConfig
	Manifests   ManifestConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Metrics         bool          `envconfig:"METRICS_ENABLED" default:"true"`
	// CORSOrigins restricts cross-origin callers; empty allows any origin
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// HostConfig holds the controller policy switches.
type HostConfig struct {
	MultiResume       bool   `envconfig:"MULTI_RESUME" default:"false" toml:"multi_resume"`
	MaxResumed        int    `envconfig:"MAX_RESUMED" default:"1" toml:"max_resumed"`
	KillPolicy        string `envconfig:"KILL_POLICY" default:"stop" toml:"kill_policy"`
	CapturePolicy     string `envconfig:"CAPTURE_POLICY" default:"immediate" toml:"capture_policy"`
	RequireDefinition bool   `envconfig:"REQUIRE_DEFINITION" default:"false" toml:"require_definition"`
	QueueBuffer       int    `envconfig:"QUEUE_BUFFER" default:"64" toml:"queue_buffer"`

	// PolicyFile is an optional TOML file with the fields above. Values
	// set in the environment win over the file.
	PolicyFile string `envconfig:"POLICY_FILE" toml:"-"`
}

// PersistenceConfig holds saved-state storage configuration.
type PersistenceConfig struct {
	// StateDir keeps blobs on disk; empty keeps them in memory
	StateDir           string        `envconfig:"STATE_DIR"`
	BreakerMaxFailures uint32        `envconfig:"STORE_BREAKER_FAILURES" default:"5"`
	BreakerTimeout     time.Duration `envconfig:"STORE_BREAKER_TIMEOUT" default:"30s"`
}

// ManifestConfig holds component manifest discovery configuration.
type ManifestConfig struct {
	Dir string `envconfig:"MANIFEST_DIR"`
}

// Capture policies
const (
	CaptureImmediate = "immediate"
	CaptureDeferred  = "deferred"
)

// Load loads configuration from environment variables and the optional
// policy file.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Host.PolicyFile != "" {
		if err := cfg.Host.overlay(cfg.Host.PolicyFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			Metrics:         true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Host: HostConfig{
			MaxResumed:    1,
			KillPolicy:    "stop",
			CapturePolicy: CaptureImmediate,
			QueueBuffer:   64,
		},
		Persistence: PersistenceConfig{
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
	}
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	switch c.Host.KillPolicy {
	case "stop", "pause", "legacy":
	default:
		return fmt.Errorf("invalid KILL_POLICY %q: want stop, pause or legacy", c.Host.KillPolicy)
	}
	switch c.Host.CapturePolicy {
	case CaptureImmediate, CaptureDeferred:
	default:
		return fmt.Errorf("invalid CAPTURE_POLICY %q: want %s or %s", c.Host.CapturePolicy, CaptureImmediate, CaptureDeferred)
	}
	if c.Host.MaxResumed < 1 {
		return fmt.Errorf("invalid MAX_RESUMED %d: must be at least 1", c.Host.MaxResumed)
	}
	if c.Host.QueueBuffer < 0 {
		return fmt.Errorf("invalid QUEUE_BUFFER %d", c.Host.QueueBuffer)
	}
	return nil
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// policyFile mirrors HostConfig with optional fields so unset keys are
// distinguishable from zero values
type policyFile struct {
	MultiResume       *bool   `toml:"multi_resume"`
	MaxResumed        *int    `toml:"max_resumed"`
	KillPolicy        *string `toml:"kill_policy"`
	CapturePolicy     *string `toml:"capture_policy"`
	RequireDefinition *bool   `toml:"require_definition"`
	QueueBuffer       *int    `toml:"queue_buffer"`
}

// overlay applies the policy file to every field whose variable is not set
// in the environment
func (h *HostConfig) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	return h.apply(data)
}

func (h *HostConfig) apply(data []byte) error {
	var f policyFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	if f.MultiResume != nil && !inEnv("MULTI_RESUME") {
		h.MultiResume = *f.MultiResume
	}
	if f.MaxResumed != nil && !inEnv("MAX_RESUMED") {
		h.MaxResumed = *f.MaxResumed
	}
	if f.KillPolicy != nil && !inEnv("KILL_POLICY") {
		h.KillPolicy = *f.KillPolicy
	}
	if f.CapturePolicy != nil && !inEnv("CAPTURE_POLICY") {
		h.CapturePolicy = *f.CapturePolicy
	}
	if f.RequireDefinition != nil && !inEnv("REQUIRE_DEFINITION") {
		h.RequireDefinition = *f.RequireDefinition
	}
	if f.QueueBuffer != nil && !inEnv("QUEUE_BUFFER") {
		h.QueueBuffer = *f.QueueBuffer
	}
	return nil
}

// EncodePolicy renders the host policy as a TOML policy file
func EncodePolicy(h HostConfig) ([]byte, error) {
	data, err := toml.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}
	return data, nil
}

func inEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}
