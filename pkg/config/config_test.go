package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative port", mutate: func(c *Config) { c.DevServer.Port = -1 }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.DevServer.Port = 70000 }, wantErr: true},
		{name: "zero viewport", mutate: func(c *Config) { c.Browser.Width = 0 }, wantErr: true},
		{name: "negative ready timeout", mutate: func(c *Config) { c.DevServer.ReadyTimeout = -time.Second }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Verify.Provider = "gemini" }, wantErr: true},
		{name: "provider is case insensitive", mutate: func(c *Config) { c.Verify.Provider = " OpenAI " }},
		{name: "custom needs base url", mutate: func(c *Config) { c.Verify.Provider = "custom" }, wantErr: true},
		{
			name: "custom with base url",
			mutate: func(c *Config) {
				c.Verify.Provider = "custom"
				c.Verify.BaseURL = "http://localhost:8000/v1"
			},
		},
		{name: "negative rate", mutate: func(c *Config) { c.Verify.RequestsPerSecond = -1 }, wantErr: true},
		{name: "bad verbosity", mutate: func(c *Config) { c.Logging.Verbosity = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_ValidateFillsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Verify.Provider = ""
	cfg.Logging.Verbosity = ""
	cfg.Notify = NotifyConfig{NATSURL: "nats://localhost:4222"}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultProvider, cfg.Verify.Provider)
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
	assert.Equal(t, DefaultSubject, cfg.Notify.Subject)
}

func TestDevServerConfig_URLs(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", DevServerConfig{}.BaseURL())
	assert.Equal(t, "http://localhost:5173", DevServerConfig{Port: 5173}.BaseURL())
	assert.Equal(t, "http://app.test:8080", DevServerConfig{URL: "http://app.test:8080", Port: 5173}.BaseURL())

	assert.Equal(t, "http://localhost:3000", DevServerConfig{Port: 3000, HealthPath: "/"}.HealthURL())
	assert.Equal(t, "http://localhost:3000/health", DevServerConfig{Port: 3000, HealthPath: "/health"}.HealthURL())
	assert.Equal(t, "http://app.test/api/health", DevServerConfig{URL: "http://app.test/", HealthPath: "api/health"}.HealthURL())
}

func TestConfig_ApplyDocument(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DevServer.Command = "npm run dev"
	cfg.DevServer.HealthPath = "/health"

	cfg.ApplyDocument(&scenario.GUITestConfig{DevURL: "http://localhost:4000", DevPort: 4000, StartupWaitMs: 250})

	assert.Equal(t, "npm run dev", cfg.DevServer.Command, "unset document fields keep lower layers")
	assert.Equal(t, "http://localhost:4000", cfg.DevServer.URL)
	assert.Equal(t, 4000, cfg.DevServer.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.DevServer.StartupWait)
	assert.Equal(t, "/health", cfg.DevServer.HealthPath)

	cfg.ApplyDocument(nil)
	assert.Equal(t, 4000, cfg.DevServer.Port)
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"VLM_API_KEY":      "vlm",
		"UI_TARS_API_KEY":  "tars",
		"UI_TARS_BASE_URL": "http://tars.local/v1",
		"OPENAI_API_KEY":   "sk",
	}
	getenv := func(k string) string { return env[k] }

	cfg := DefaultConfig()
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "tars", cfg.Verify.APIKey)
	assert.Equal(t, "http://tars.local/v1", cfg.Verify.BaseURL)

	cfg = DefaultConfig()
	cfg.Verify.Provider = "anthropic"
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "vlm", cfg.Verify.APIKey, "falls back to VLM_API_KEY")
	assert.Empty(t, cfg.Verify.BaseURL)

	cfg = DefaultConfig()
	cfg.Verify.APIKey = "flag"
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "flag", cfg.Verify.APIKey, "explicit key wins")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guitest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dev_server:
  command: npm run dev
  port: 5173
  startup_wait: 3s
browser:
  headless: false
verify:
  provider: openai
  model: gpt-4o-mini
  requests_per_second: 0.5
telemetry:
  trace: true
`), 0o644))

	base := DefaultConfig()
	cfg, err := LoadFile(path, base)
	require.NoError(t, err)

	assert.Equal(t, "npm run dev", cfg.DevServer.Command)
	assert.Equal(t, 5173, cfg.DevServer.Port)
	assert.Equal(t, 3*time.Second, cfg.DevServer.StartupWait)
	assert.Equal(t, DefaultReadyTimeout, cfg.DevServer.ReadyTimeout, "unset keys keep the base value")
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.Width)
	assert.Equal(t, "openai", cfg.Verify.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Verify.Model)
	assert.InDelta(t, 0.5, cfg.Verify.RequestsPerSecond, 1e-9)
	assert.True(t, cfg.Telemetry.Trace)

	assert.Equal(t, DefaultPort, base.DevServer.Port, "base is not modified")
	assert.True(t, base.Browser.Headless)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), DefaultConfig())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dev_server: [unclosed"), 0o644))
	_, err = LoadFile(path, DefaultConfig())
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	assert.Empty(t, FindFile(dir))

	path := filepath.Join(dir, ".guitest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	assert.Equal(t, path, FindFile(dir))

	preferred := filepath.Join(dir, "guitest.yaml")
	require.NoError(t, os.WriteFile(preferred, []byte("{}"), 0o644))
	assert.Equal(t, preferred, FindFile(dir))
}
