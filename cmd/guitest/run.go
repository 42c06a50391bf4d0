package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/entrhq/guitest/pkg/config"
	"github.com/entrhq/guitest/pkg/history"
	"github.com/entrhq/guitest/pkg/logging"
	"github.com/entrhq/guitest/pkg/notify"
	"github.com/entrhq/guitest/pkg/report"
	"github.com/entrhq/guitest/pkg/runner"
	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/entrhq/guitest/pkg/telemetry"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// errTestsFailed makes the process exit 1 without printing anything more.
var errTestsFailed = cli.Exit("", exitFailed)

func (a *app) runCommand(c *cli.Context) error {
	path, err := documentArg(c)
	if err != nil {
		return err
	}
	filter, err := scenario.NewFilter(c.StringSlice("only")...)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, stop := a.signalContext(c.Context)
	defer stop()

	if !c.Bool("watch") {
		return a.runOnce(ctx, c, path, filter)
	}
	return a.watch(ctx, path, func() error {
		return a.runOnce(ctx, c, path, filter)
	})
}

// runOnce loads the document fresh, runs it and prints the results. It returns
// errTestsFailed when any test failed or the run could not complete.
func (a *app) runOnce(ctx context.Context, c *cli.Context, path string, filter *scenario.Filter) error {
	console := report.NewConsole(a.stderr, level(c))

	doc, err := scenario.Load(path)
	if err != nil {
		console.Errorf("%v", err)
		return errTestsFailed
	}
	cfg, project, err := resolveConfig(c, doc, a.getenv)
	if err != nil {
		console.Errorf("Configuration error: %v", err)
		return errTestsFailed
	}
	console = report.NewConsole(a.stderr, report.ParseLevel(cfg.Logging.Verbosity))

	logs, logErr := a.openLog(cfg)
	defer logs.Close()
	if logErr != nil {
		console.Warningf("%v", logErr)
	}
	logger := logs.Logger("run")
	logger.Info().
		Str("document", path).
		Str("project_type", string(project.Type)).
		Str("provider", cfg.Verify.Provider).
		Msg("starting run")
	console.Verbosef("Detected %s project, logs at %s", project.Type, logs.Path())

	opts, closeSinks := a.sinks(cfg, console, logger)
	defer closeSinks()

	r := runner.New(append(opts,
		runner.WithConsole(console),
		runner.WithLogger(logs.Logger("runner")),
	)...)
	a.setServer(r.Server())

	result, runErr := r.Run(ctx, runner.Request{
		Document:      doc,
		StoryID:       c.String("story"),
		Filter:        filter,
		QualityChecks: c.Bool("quality-checks"),
		Config:        cfg,
	})
	if runErr != nil {
		logger.Error().Err(runErr).Msg("run failed")
		if errors.Is(runErr, context.Canceled) {
			console.Errorf("Interrupted")
		} else {
			console.Errorf("Fatal error: %v", runErr)
		}
	}
	if result != nil {
		if err := report.PrintResults(a.stdout, result, a.colorStdout()); err != nil {
			return err
		}
	}
	if runErr != nil || result == nil || result.Failed() {
		return errTestsFailed
	}
	return nil
}

func (a *app) openLog(cfg *config.Config) (*logging.Session, error) {
	opts := logging.Options{Dir: cfg.Logging.Dir, Level: zerolog.InfoLevel}
	switch cfg.Logging.Verbosity {
	case "verbose", "debug":
		opts.Level = zerolog.DebugLevel
		opts.Console = a.stderr
	}
	return logging.Open(opts)
}

// sinks builds the optional post-run outputs. The returned func releases them.
func (a *app) sinks(cfg *config.Config, console *report.Console, logger zerolog.Logger) ([]runner.Option, func()) {
	var (
		opts    []runner.Option
		closers []func()
	)

	if cfg.Artifacts.Enabled {
		opts = append(opts, runner.WithArtifacts(report.NewArtifactWriter(cfg.Artifacts.OutputDir, cfg.Artifacts.JSON, cfg.Artifacts.Markdown)))
	}

	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path = history.DefaultPath()
		}
		store, err := history.Open(path)
		if err != nil {
			console.Warningf("Run history disabled: %v", err)
		} else {
			opts = append(opts, runner.WithRecorder(store))
			closers = append(closers, func() { store.Close() })
		}
	}

	if file := cfg.Telemetry.MetricsFile; file != "" {
		m := telemetry.NewMetrics()
		opts = append(opts, runner.WithMetrics(m))
		closers = append(closers, func() {
			if err := m.WriteTextfile(file); err != nil {
				console.Warningf("%v", err)
			}
		})
	}

	if cfg.Telemetry.Trace {
		tp, err := telemetry.NewTracerProvider(a.stderr, version)
		if err != nil {
			console.Warningf("Tracing disabled: %v", err)
		} else {
			closers = append(closers, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(ctx); err != nil {
					logger.Warn().Err(err).Msg("failed to flush spans")
				}
			})
		}
	}

	if url := cfg.Notify.NATSURL; url != "" {
		pub, err := notify.NewNATSPublisher(notify.NATSConfig{URL: url, Subject: cfg.Notify.Subject})
		if err != nil {
			console.Warningf("Result publishing disabled: %v", err)
		} else {
			opts = append(opts, runner.WithPublisher(pub))
			closers = append(closers, func() { pub.Close() })
		}
	}

	return opts, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func level(c *cli.Context) report.Level {
	switch {
	case c.Bool("quiet"):
		return report.LevelQuiet
	case c.Bool("verbose"):
		return report.LevelVerbose
	}
	return report.LevelNormal
}

// colorStdout reports whether stdout is a terminal.
func (a *app) colorStdout() bool {
	f, ok := a.stdout.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
