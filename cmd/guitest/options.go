package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/entrhq/guitest/pkg/config"
	"github.com/entrhq/guitest/pkg/detect"
	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/urfave/cli/v2"
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "story", Aliases: []string{"s"}, Usage: "Story id to test (default: first story not yet passing)"},
		&cli.StringSliceFlag{Name: "only", Usage: "Only run tests whose id matches this glob (repeatable)"},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file (default: guitest.yaml next to the PRD)"},
		&cli.StringFlag{Name: "provider", Usage: "Verification provider: ui-tars, huggingface, agent-tars, openai, volcengine, anthropic, custom"},
		&cli.StringFlag{Name: "model", Usage: "Vision model name"},
		&cli.StringFlag{Name: "api-key", Usage: "Vision model API key (or set the provider's key variable)"},
		&cli.StringFlag{Name: "base-url", Usage: "Vision model endpoint"},
		&cli.BoolFlag{Name: "headless", Value: true, Usage: "Run the browser without a window"},
		&cli.StringFlag{Name: "dev-command", Usage: "Command that starts the dev server"},
		&cli.StringFlag{Name: "dev-url", Usage: "URL of the running app"},
		&cli.IntFlag{Name: "port", Usage: "Dev server port"},
		&cli.StringFlag{Name: "screenshots", Usage: "Screenshot directory (default: <prd dir>/screenshots)"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Directory for results.json and summary.md"},
		&cli.BoolFlag{Name: "no-artifacts", Usage: "Do not write results.json or summary.md"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Verbose console output and debug logs on stderr"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only print errors and the summary"},
		&cli.StringFlag{Name: "log-dir", Usage: "Diagnostic log directory (default ~/.guitest/logs)"},
		&cli.StringFlag{Name: "history-db", Usage: "History database path (default ~/.guitest/history.db)"},
		&cli.BoolFlag{Name: "no-history", Usage: "Do not record this run in the history"},
		&cli.StringFlag{Name: "metrics-file", Usage: "Write Prometheus metrics to this file after each run"},
		&cli.BoolFlag{Name: "trace", Usage: "Print OpenTelemetry spans to stderr"},
		&cli.StringFlag{Name: "nats-url", Usage: "Publish results to this NATS server"},
		&cli.StringFlag{Name: "nats-subject", Usage: "Base NATS subject for results"},
		&cli.BoolFlag{Name: "quality-checks", Usage: "Run the document's qualityChecks commands before the GUI tests"},
		&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Re-run whenever the PRD document changes"},
	}
}

// resolveConfig layers, lowest precedence first: built-in defaults, the
// detected project, the config file, the document's guiTestConfig, flags and
// finally credentials from the environment.
func resolveConfig(c *cli.Context, doc *scenario.Document, getenv func(string) string) (*config.Config, *detect.Project, error) {
	cfg := config.DefaultConfig()

	project, err := detect.Detect(doc.Dir())
	if err != nil {
		return nil, nil, err
	}
	cfg.DevServer.Override(project.DevServer())

	path := c.String("config")
	if path == "" {
		path = config.FindFile(doc.Dir())
	}
	if path != "" {
		if cfg, err = config.LoadFile(path, cfg); err != nil {
			return nil, nil, err
		}
	}

	cfg.ApplyDocument(doc.GUITestConfig)
	applyFlags(c, cfg)
	cfg.ApplyEnv(getenv)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	resolveRelative(cfg, doc.Dir())
	return cfg, project, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("provider") {
		cfg.Verify.Provider = c.String("provider")
		// A key from the file belongs to the provider the file named.
		if !c.IsSet("api-key") {
			cfg.Verify.APIKey = ""
		}
	}
	set := map[string]*string{
		"model":        &cfg.Verify.Model,
		"api-key":      &cfg.Verify.APIKey,
		"base-url":     &cfg.Verify.BaseURL,
		"dev-command":  &cfg.DevServer.Command,
		"dev-url":      &cfg.DevServer.URL,
		"screenshots":  &cfg.Artifacts.ScreenshotDir,
		"output":       &cfg.Artifacts.OutputDir,
		"log-dir":      &cfg.Logging.Dir,
		"history-db":   &cfg.History.Path,
		"metrics-file": &cfg.Telemetry.MetricsFile,
		"nats-url":     &cfg.Notify.NATSURL,
		"nats-subject": &cfg.Notify.Subject,
	}
	for name, dst := range set {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}

	if c.IsSet("headless") {
		cfg.Browser.Headless = c.Bool("headless")
	}
	if c.IsSet("port") {
		cfg.DevServer.Port = c.Int("port")
	}
	if c.Bool("no-artifacts") {
		cfg.Artifacts.Enabled = false
	}
	if c.Bool("no-history") {
		cfg.History.Enabled = false
	}
	if c.Bool("trace") {
		cfg.Telemetry.Trace = true
	}
	switch {
	case c.Bool("quiet"):
		cfg.Logging.Verbosity = "quiet"
	case c.Bool("verbose"):
		cfg.Logging.Verbosity = "verbose"
	}
}

// resolveRelative anchors output paths at the document's directory.
func resolveRelative(cfg *config.Config, dir string) {
	for _, p := range []*string{&cfg.Artifacts.OutputDir, &cfg.Artifacts.ScreenshotDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// documentArg returns the PRD path argument.
func documentArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("Usage: %s run <prd.json> [options]", appName), exitUsage)
	}
	path, err := filepath.Abs(strings.TrimSpace(c.Args().First()))
	if err != nil {
		return "", err
	}
	return path, nil
}
