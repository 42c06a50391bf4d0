// Package runner drives one story end to end: it starts the dev server,
// opens a browser, runs the story's browser and semantic tests in order, and
// always tears both down again.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/guitest/pkg/browser"
	"github.com/entrhq/guitest/pkg/config"
	"github.com/entrhq/guitest/pkg/devserver"
	"github.com/entrhq/guitest/pkg/executor"
	"github.com/entrhq/guitest/pkg/health"
	"github.com/entrhq/guitest/pkg/notify"
	"github.com/entrhq/guitest/pkg/report"
	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/entrhq/guitest/pkg/telemetry"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/entrhq/guitest/pkg/verify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Skip reasons reported on empty runs.
const (
	ReasonNoStory = "No story found to test"
	ReasonNoTests = "No GUI or browser tests defined for this story"
)

// Server starts and stops the application under test. *devserver.Manager
// implements it.
type Server interface {
	Start(ctx context.Context, cfg devserver.Config) error
	Stop() error
}

// Browser is the page both test kinds run against. *browser.Session
// implements it.
type Browser interface {
	executor.Page
	verify.Operator
	Close() error
}

// BrowserOpener launches a browser session.
type BrowserOpener func(opts browser.Options) (Browser, error)

// ProviderFactory builds the semantic verification provider.
type ProviderFactory func(s verify.Settings, deps verify.Deps) (verify.Provider, error)

// Recorder persists finished runs. *history.Store implements it.
type Recorder interface {
	Record(project string, r *types.RunResult) error
}

// Request selects what to run.
type Request struct {
	Document *scenario.Document

	// StoryID picks a story; empty means the first story not yet passing.
	StoryID string

	// Filter narrows the story's tests by id; nil keeps all of them.
	Filter *scenario.Filter

	// QualityChecks runs the document's qualityChecks commands before the
	// GUI tests.
	QualityChecks bool

	Config *config.Config
}

// Runner runs stories. A Runner executes one story at a time.
type Runner struct {
	server      Server
	openBrowser BrowserOpener
	newProvider ProviderFactory
	console     *report.Console
	logger      zerolog.Logger

	artifacts *report.ArtifactWriter
	metrics   *telemetry.Metrics
	recorder  Recorder
	publisher notify.Publisher
}

// Option configures a Runner.
type Option func(*Runner)

// WithServer replaces the dev-server manager.
func WithServer(s Server) Option {
	return func(r *Runner) { r.server = s }
}

// WithBrowserOpener replaces the Playwright session opener.
func WithBrowserOpener(o BrowserOpener) Option {
	return func(r *Runner) { r.openBrowser = o }
}

// WithProviderFactory replaces verify.New.
func WithProviderFactory(f ProviderFactory) Option {
	return func(r *Runner) { r.newProvider = f }
}

// WithConsole sets the human-readable progress printer.
func WithConsole(c *report.Console) Option {
	return func(r *Runner) { r.console = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithArtifacts writes results.json and summary.md after each run.
func WithArtifacts(w *report.ArtifactWriter) Option {
	return func(r *Runner) { r.artifacts = w }
}

// WithMetrics records each run in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithRecorder stores each run in the history.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithPublisher announces each run.
func WithPublisher(p notify.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// New returns a Runner using the real dev-server manager, Playwright and
// verify.New unless overridden.
func New(opts ...Option) *Runner {
	r := &Runner{
		console:     report.NewConsole(os.Stderr, report.LevelNormal),
		logger:      zerolog.Nop(),
		newProvider: verify.New,
		openBrowser: func(o browser.Options) (Browser, error) {
			s, err := browser.Open(o)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.server == nil {
		r.server = devserver.NewManager(
			health.NewProber(health.WithLogger(r.logger.With().Str("component", "health").Logger())),
			devserver.WithLogger(r.logger.With().Str("component", "devserver").Logger()),
		)
	}
	return r
}

// Server returns the dev-server manager, for signal handlers that must stop
// it out of band.
func (r *Runner) Server() Server {
	return r.server
}

// Run executes the selected story. Test failures are reported in the result.
// An error means the run could not complete: the dev server or browser failed
// to start, or ctx was cancelled, in which case the partial result is returned
// alongside ctx's error. Cleanup runs on every path.
func (r *Runner) Run(ctx context.Context, req Request) (result *types.RunResult, err error) {
	if req.Document == nil {
		return nil, fmt.Errorf("%w: no test document", types.ErrConfig)
	}
	cfg := req.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ctx, span := telemetry.StartSpan(ctx, "guitest.run")
	defer func() {
		telemetry.EndRun(span, result, err)
	}()

	story := req.Document.SelectStory(req.StoryID)
	if story == nil {
		storyID := req.StoryID
		if storyID == "" {
			storyID = "none"
		}
		r.console.Warningf("%s", ReasonNoStory)
		return r.finish(ctx, req.Document, skipped(storyID, ReasonNoStory)), nil
	}
	story = req.Filter.Apply(story)
	span.SetAttributes(telemetry.AttrStoryID.String(story.ID))

	r.console.Header(fmt.Sprintf("Testing story: %s - %s", story.ID, story.Title))
	runChecks := req.QualityChecks && len(req.Document.QualityChecks) > 0
	if !story.HasTests() && !runChecks {
		r.console.Warningf("%s", ReasonNoTests)
		return r.finish(ctx, req.Document, skipped(story.ID, ReasonNoTests)), nil
	}

	result = types.NewRunResult(story.ID)
	result.RunID = uuid.NewString()
	span.SetAttributes(telemetry.AttrRunID.String(result.RunID))
	logger := r.logger.With().Str("run_id", result.RunID).Str("story", story.ID).Logger()

	screenshotDir := cfg.Artifacts.ScreenshotDir
	if screenshotDir == "" {
		screenshotDir = filepath.Join(req.Document.Dir(), "screenshots")
	}
	if err := os.MkdirAll(screenshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	s := &session{
		runner:        r,
		cfg:           cfg,
		doc:           req.Document,
		screenshotDir: screenshotDir,
		logger:        logger,
		result:        result,
	}
	defer s.cleanup()

	if runChecks {
		if err := s.runQualityChecks(ctx); err != nil {
			result.Finish()
			return result, err
		}
	}
	if !story.HasTests() {
		s.cleanup()
		return r.finish(ctx, req.Document, result), nil
	}
	if err := s.startServer(ctx); err != nil {
		return nil, err
	}
	if err := s.openBrowser(); err != nil {
		return nil, err
	}
	if err := s.runBrowserTests(ctx, story.BrowserTests); err != nil {
		result.Finish()
		return result, err
	}
	if err := s.runSemanticTests(ctx, story.SemanticTests); err != nil {
		result.Finish()
		return result, err
	}

	// Tear down before reporting so the summary follows the server's exit.
	s.cleanup()
	return r.finish(ctx, req.Document, result), nil
}

func skipped(storyID, reason string) *types.RunResult {
	r := types.NewRunResult(storyID)
	r.SkippedReason = reason
	return r
}

// finish stamps the duration and hands the result to every configured sink.
// Sink failures are logged and never fail the run.
func (r *Runner) finish(ctx context.Context, doc *scenario.Document, result *types.RunResult) *types.RunResult {
	result.Finish()
	r.console.Summary(result)

	if r.metrics != nil {
		r.metrics.ObserveRun(result)
	}
	if r.artifacts != nil {
		paths, err := r.artifacts.WriteAll(doc.Project, result)
		if err != nil {
			r.sinkFailed("artifacts", err)
		}
		for _, p := range paths {
			r.console.Verbosef("Wrote %s", p)
		}
	}
	if r.recorder != nil {
		if err := r.recorder.Record(doc.Project, result); err != nil {
			r.sinkFailed("history", err)
		}
	}
	if r.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.publisher.Publish(pubCtx, notify.NewEvent(doc.Project, result)); err != nil {
			r.sinkFailed("notify", err)
		}
	}
	return result
}

func (r *Runner) sinkFailed(sink string, err error) {
	r.logger.Warn().Err(err).Str("sink", sink).Msg("failed to record run")
	r.console.Warningf("Failed to record run (%s): %v", sink, err)
}
