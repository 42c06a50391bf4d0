// Package config holds run configuration for guitest.
//
// Values are layered, highest precedence first: command-line flags, the PRD
// document's guiTestConfig, a YAML config file, the detected project type,
// and built-in defaults. Callers apply the layers bottom-up: start from
// DefaultConfig, apply detection, load the file over it, then the document
// and flags, then ApplyEnv for credentials, then Validate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/entrhq/guitest/pkg/verify"
	"gopkg.in/yaml.v3"
)

// Config is the complete run configuration.
type Config struct {
	DevServer DevServerConfig `yaml:"dev_server" json:"dev_server"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Verify    VerifyConfig    `yaml:"verify" json:"verify"`
	Artifacts ArtifactConfig  `yaml:"artifacts" json:"artifacts"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	History   HistoryConfig   `yaml:"history" json:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`
}

// DevServerConfig describes how to start and reach the application under test.
type DevServerConfig struct {
	// Command is run through the shell; empty means the server is already running
	Command string `yaml:"command" json:"command,omitempty"`
	URL     string `yaml:"url" json:"url,omitempty"`
	Port    int    `yaml:"port" json:"port,omitempty"`

	// HealthPath is appended to URL when probing readiness
	HealthPath string `yaml:"health_path" json:"health_path,omitempty"`

	StartupWait  time.Duration `yaml:"startup_wait" json:"startup_wait"`
	ReadyTimeout time.Duration `yaml:"ready_timeout" json:"ready_timeout"`
}

// BaseURL returns URL, or http://localhost:<port> when URL is unset.
func (d DevServerConfig) BaseURL() string {
	if d.URL != "" {
		return d.URL
	}
	port := d.Port
	if port == 0 {
		port = DefaultPort
	}
	return "http://localhost:" + strconv.Itoa(port)
}

// HealthURL returns the URL probed for readiness.
func (d DevServerConfig) HealthURL() string {
	if d.HealthPath == "" || d.HealthPath == "/" {
		return d.BaseURL()
	}
	return strings.TrimRight(d.BaseURL(), "/") + "/" + strings.TrimLeft(d.HealthPath, "/")
}

// Override copies the non-zero fields of o into d.
func (d *DevServerConfig) Override(o DevServerConfig) {
	if o.Command != "" {
		d.Command = o.Command
	}
	if o.URL != "" {
		d.URL = o.URL
	}
	if o.Port != 0 {
		d.Port = o.Port
	}
	if o.HealthPath != "" {
		d.HealthPath = o.HealthPath
	}
	if o.StartupWait != 0 {
		d.StartupWait = o.StartupWait
	}
	if o.ReadyTimeout != 0 {
		d.ReadyTimeout = o.ReadyTimeout
	}
}

// ApplyDocument overrides dev-server settings with a document's
// guiTestConfig. A nil g changes nothing.
func (c *Config) ApplyDocument(g *scenario.GUITestConfig) {
	if g == nil {
		return
	}
	c.DevServer.Override(DevServerConfig{
		Command:     g.DevCommand,
		URL:         g.DevURL,
		Port:        g.DevPort,
		StartupWait: time.Duration(g.StartupWaitMs) * time.Millisecond,
	})
}

// BrowserConfig configures the Chromium session.
type BrowserConfig struct {
	Headless bool          `yaml:"headless" json:"headless"`
	Width    int           `yaml:"width" json:"width"`
	Height   int           `yaml:"height" json:"height"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Args     []string      `yaml:"args" json:"args,omitempty"`
}

// VerifyConfig selects the semantic verification provider.
type VerifyConfig struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model,omitempty"`
	BaseURL  string `yaml:"base_url" json:"base_url,omitempty"`
	APIKey   string `yaml:"api_key" json:"-"`

	RequestsPerSecond float64  `yaml:"requests_per_second" json:"requests_per_second,omitempty"`
	MaxSteps          int      `yaml:"max_steps" json:"max_steps,omitempty"`
	AgentCommand      []string `yaml:"agent_command" json:"agent_command,omitempty"`
}

// Settings converts c for verify.New.
func (c VerifyConfig) Settings() verify.Settings {
	return verify.Settings{
		Provider:          c.Provider,
		Model:             c.Model,
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		RequestsPerSecond: c.RequestsPerSecond,
		MaxSteps:          c.MaxSteps,
		AgentCommand:      c.AgentCommand,
	}
}

// ArtifactConfig controls where results and screenshots are written.
type ArtifactConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// OutputDir receives results.json and summary.md
	OutputDir string `yaml:"output_dir" json:"output_dir,omitempty"`

	// ScreenshotDir defaults to <prd dir>/screenshots
	ScreenshotDir string `yaml:"screenshot_dir" json:"screenshot_dir,omitempty"`

	JSON     bool `yaml:"json" json:"json"`
	Markdown bool `yaml:"markdown" json:"markdown"`
}

// LoggingConfig controls console verbosity and the diagnostic log file.
type LoggingConfig struct {
	// Verbosity is quiet, normal, verbose or debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
	Dir       string `yaml:"dir" json:"dir,omitempty"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path,omitempty"`
}

// TelemetryConfig enables metrics and tracing output.
type TelemetryConfig struct {
	// MetricsFile receives Prometheus text exposition after each run
	MetricsFile string `yaml:"metrics_file" json:"metrics_file,omitempty"`
	Trace       bool   `yaml:"trace" json:"trace"`
}

// NotifyConfig enables publishing run results to NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url" json:"nats_url,omitempty"`
	Subject string `yaml:"subject" json:"subject,omitempty"`
}

// Built-in defaults.
const (
	DefaultPort         = 3000
	DefaultStartupWait  = 5 * time.Second
	DefaultReadyTimeout = 30 * time.Second
	DefaultProvider     = verify.ProviderUITars
	DefaultSubject      = "guitest.results"
	DefaultOutputDir    = ".guitest/artifacts"
)

// Verbosity levels.
var verbosities = []string{"quiet", "normal", "verbose", "debug"}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		DevServer: DevServerConfig{
			Port:         DefaultPort,
			StartupWait:  DefaultStartupWait,
			ReadyTimeout: DefaultReadyTimeout,
		},
		Browser: BrowserConfig{
			Headless: true,
			Width:    1920,
			Height:   1080,
			Timeout:  30 * time.Second,
		},
		Verify: VerifyConfig{
			Provider: DefaultProvider,
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: DefaultOutputDir,
			JSON:      true,
			Markdown:  true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{
			Subject: DefaultSubject,
		},
	}
}

// Validate checks c for values that would fail later at run time.
func (c *Config) Validate() error {
	if c.DevServer.Port < 0 || c.DevServer.Port > 65535 {
		return fmt.Errorf("%w: invalid dev server port %d", types.ErrConfig, c.DevServer.Port)
	}
	if c.DevServer.ReadyTimeout < 0 {
		return fmt.Errorf("%w: ready_timeout cannot be negative", types.ErrConfig)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("%w: browser viewport must be positive, got %dx%d", types.ErrConfig, c.Browser.Width, c.Browser.Height)
	}
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("%w: browser timeout cannot be negative", types.ErrConfig)
	}

	c.Verify.Provider = strings.ToLower(strings.TrimSpace(c.Verify.Provider))
	if c.Verify.Provider == "" {
		c.Verify.Provider = DefaultProvider
	}
	if !slices.Contains(verify.Providers, c.Verify.Provider) {
		return fmt.Errorf("%w: invalid verify provider %q (must be one of %s)", types.ErrConfig, c.Verify.Provider, strings.Join(verify.Providers, ", "))
	}
	if c.Verify.Provider == verify.ProviderCustom && c.Verify.BaseURL == "" {
		return fmt.Errorf("%w: custom verify provider requires base_url", types.ErrConfig)
	}
	if c.Verify.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second cannot be negative", types.ErrConfig)
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if !slices.Contains(verbosities, c.Logging.Verbosity) {
		return fmt.Errorf("%w: invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", types.ErrConfig, c.Logging.Verbosity)
	}

	if c.Notify.NATSURL != "" && c.Notify.Subject == "" {
		c.Notify.Subject = DefaultSubject
	}
	return nil
}

// ApplyEnv fills the verification key and endpoint from the environment when
// they are not already set. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	provider := strings.ToLower(strings.TrimSpace(c.Verify.Provider))
	if c.Verify.APIKey == "" {
		for _, name := range verify.CredentialEnv(provider) {
			if v := getenv(name); v != "" {
				c.Verify.APIKey = v
				break
			}
		}
	}
	if c.Verify.BaseURL == "" {
		if name := verify.BaseURLEnv(provider); name != "" {
			c.Verify.BaseURL = getenv(name)
		}
	}
}

// LoadFile decodes the YAML file at path over a copy of base.
func LoadFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := *base
	cfg.Browser.Args = slices.Clone(base.Browser.Args)
	cfg.Verify.AgentCommand = slices.Clone(base.Verify.AgentCommand)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file %s: %v", types.ErrConfig, path, err)
	}
	return &cfg, nil
}

// FileNames are looked up, in order, in the project directory.
var FileNames = []string{"guitest.yaml", "guitest.yml", ".guitest.yaml"}

// FindFile returns the config file for a project in dir, falling back to
// ~/.guitest/config.yaml. It returns "" when none exists.
func FindFile(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".guitest", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
