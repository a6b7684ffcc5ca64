package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Address())

	// Host policy
	assert.False(t, cfg.Host.MultiResume)
	assert.Equal(t, 1, cfg.Host.MaxResumed)
	assert.Equal(t, "stop", cfg.Host.KillPolicy)
	assert.Equal(t, CaptureImmediate, cfg.Host.CapturePolicy)

	// Persistence
	assert.Empty(t, cfg.Persistence.StateDir)
	assert.Equal(t, uint32(5), cfg.Persistence.BreakerMaxFailures)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "127.0.0.1",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_BURST":       "1000",
		"RATE_LIMIT_ENABLED":     "false",
		"MULTI_RESUME":           "true",
		"MAX_RESUMED":            "3",
		"KILL_POLICY":            "legacy",
		"CAPTURE_POLICY":         "deferred",
		"REQUIRE_DEFINITION":     "true",
		"STATE_DIR":              "/var/lib/lifecycle",
		"STORE_BREAKER_TIMEOUT":  "5s",
		"STORE_BREAKER_FAILURES": "2",
		"MANIFEST_DIR":           "/etc/lifecycle/components",
		"CORS_ORIGINS":           "https://a.example.com,https://b.example.com",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)

	assert.True(t, cfg.Host.MultiResume)
	assert.Equal(t, 3, cfg.Host.MaxResumed)
	assert.Equal(t, "legacy", cfg.Host.KillPolicy)
	assert.Equal(t, CaptureDeferred, cfg.Host.CapturePolicy)
	assert.True(t, cfg.Host.RequireDefinition)

	assert.Equal(t, "/var/lib/lifecycle", cfg.Persistence.StateDir)
	assert.Equal(t, 5*time.Second, cfg.Persistence.BreakerTimeout)
	assert.Equal(t, uint32(2), cfg.Persistence.BreakerMaxFailures)
	assert.Equal(t, "/etc/lifecycle/components", cfg.Manifests.Dir)
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"kill policy", "KILL_POLICY", "whenever"},
		{"capture policy", "CAPTURE_POLICY", "never"},
		{"max resumed", "MAX_RESUMED", "0"},
		{"queue buffer", "QUEUE_BUFFER", "-1"},
		{"not a number", "MAX_RESUMED", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPolicyFileOverlay(t *testing.T) {
	path := writePolicy(t, `
multi_resume = true
max_resumed = 2
kill_policy = "pause"
capture_policy = "deferred"
`)
	t.Setenv("POLICY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Host.MultiResume)
	assert.Equal(t, 2, cfg.Host.MaxResumed)
	assert.Equal(t, "pause", cfg.Host.KillPolicy)
	assert.Equal(t, CaptureDeferred, cfg.Host.CapturePolicy)
	assert.False(t, cfg.Host.RequireDefinition, "keys missing from the file keep their value")
	assert.Equal(t, 64, cfg.Host.QueueBuffer)
}

func TestEnvironmentWinsOverPolicyFile(t *testing.T) {
	path := writePolicy(t, "max_resumed = 2\nkill_policy = \"pause\"\n")
	t.Setenv("POLICY_FILE", path)
	t.Setenv("MAX_RESUMED", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Host.MaxResumed)
	assert.Equal(t, "pause", cfg.Host.KillPolicy)
}

func TestPolicyFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "resume_everything = true\n"},
		{"wrong type", "max_resumed = \"two\"\n"},
		{"invalid value", "kill_policy = \"random\"\n"},
		{"not toml", "max_resumed = = 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("POLICY_FILE", writePolicy(t, tt.content))
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("POLICY_FILE", filepath.Join(t.TempDir(), "absent.toml"))
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestEncodePolicyRoundTrip(t *testing.T) {
	in := HostConfig{
		MultiResume:   true,
		MaxResumed:    3,
		KillPolicy:    "pause",
		CapturePolicy: CaptureDeferred,
		QueueBuffer:   16,
		PolicyFile:    "ignored",
	}

	data, err := EncodePolicy(in)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ignored")

	var out HostConfig
	require.NoError(t, out.apply(data))
	in.PolicyFile = ""
	assert.Equal(t, in, out)
}
