package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/entrhq/guitest/pkg/browser"
	"github.com/entrhq/guitest/pkg/checks"
	"github.com/entrhq/guitest/pkg/config"
	"github.com/entrhq/guitest/pkg/devserver"
	"github.com/entrhq/guitest/pkg/executor"
	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/entrhq/guitest/pkg/telemetry"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/entrhq/guitest/pkg/verify"
	"github.com/rs/zerolog"
)

// session is the state of one Run between setup and cleanup.
type session struct {
	runner        *Runner
	cfg           *config.Config
	doc           *scenario.Document
	screenshotDir string
	logger        zerolog.Logger
	result        *types.RunResult

	serverStarted bool
	page          Browser
	cleaned       bool
}

func (s *session) runQualityChecks(ctx context.Context) error {
	list := checks.FromDocument(s.doc.QualityChecks, checks.DefaultTimeout)
	s.runner.console.Section(fmt.Sprintf("Running %d quality checks", len(list)))
	for _, tr := range checks.RunAll(ctx, s.doc.Dir(), list) {
		s.record(tr)
	}
	return ctx.Err()
}

func (s *session) startServer(ctx context.Context) error {
	ds := s.cfg.DevServer
	if ds.Command == "" {
		s.runner.console.Verbosef("No dev command configured, expecting %s to be up", ds.BaseURL())
		return nil
	}

	s.runner.console.Step("Starting dev server...")
	// Stop must run even when Start fails part way.
	s.serverStarted = true
	err := s.runner.server.Start(ctx, devserver.Config{
		Command:      ds.Command,
		Dir:          s.doc.Dir(),
		Port:         ds.Port,
		URL:          ds.HealthURL(),
		StartupWait:  ds.StartupWait,
		ReadyTimeout: ds.ReadyTimeout,
	})
	if err != nil {
		s.runner.console.Errorf("Dev server failed to start: %v", err)
		return fmt.Errorf("failed to start dev server: %w", err)
	}
	s.runner.console.Successf("Dev server ready at %s", ds.BaseURL())
	return nil
}

func (s *session) openBrowser() error {
	b := s.cfg.Browser
	page, err := s.runner.openBrowser(browser.Options{
		Headless: b.Headless,
		Viewport: &browser.Viewport{Width: b.Width, Height: b.Height},
		Timeout:  b.Timeout,
		Args:     b.Args,
		Logger:   s.logger.With().Str("component", "browser").Logger(),
	})
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	s.page = page
	return nil
}

func (s *session) runBrowserTests(ctx context.Context, tests []scenario.BrowserTest) error {
	if len(tests) == 0 {
		return nil
	}
	s.runner.console.Section(fmt.Sprintf("Running %d browser tests", len(tests)))

	opts := []executor.Option{executor.WithLogger(s.logger.With().Str("component", "executor").Logger())}
	if t := s.cfg.Browser.Timeout; t > 0 {
		opts = append(opts, executor.WithTimeouts(t, browser.DefaultSelectorTimeout))
	}
	exec := executor.New(s.page, s.screenshotDir, opts...)

	for _, test := range tests {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runner.console.Step(fmt.Sprintf("%s: %s", test.ID, test.Name))
		testCtx, span := telemetry.StartSpan(ctx, "guitest.browser_test",
			telemetry.AttrTestID.String(test.ID),
			telemetry.AttrTestKind.String(string(types.KindBrowser)),
		)
		tr := exec.Run(testCtx, test)
		telemetry.EndTest(span, tr)
		s.record(tr)
	}
	return ctx.Err()
}

func (s *session) runSemanticTests(ctx context.Context, tests []scenario.SemanticTest) error {
	if len(tests) == 0 {
		return nil
	}

	settings := s.cfg.Verify.Settings()
	provider, err := s.runner.newProvider(settings, verify.Deps{
		Operator: s.page,
		WorkDir:  s.doc.Dir(),
		Logger:   s.logger.With().Str("component", "verify").Logger(),
	})
	if err != nil {
		if verify.IsMissingCredential(err) {
			s.runner.console.Warningf("No VLM API key provided. Skipping %d GUI tests.", len(tests))
		} else {
			s.runner.console.Warningf("Verification provider unavailable, skipping %d GUI tests: %v", len(tests), err)
		}
		s.logger.Warn().Err(err).Str("provider", settings.Provider).Msg("semantic tests skipped")
		s.result.SkippedTests += len(tests)
		return nil
	}

	s.runner.console.Section(fmt.Sprintf("Running %d GUI tests (%s)", len(tests), provider.Name()))
	for _, test := range tests {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runner.console.Step(fmt.Sprintf("%s: %s", test.ID, test.Instruction))
		testCtx, span := telemetry.StartSpan(ctx, "guitest.semantic_test",
			telemetry.AttrTestID.String(test.ID),
			telemetry.AttrTestKind.String(string(types.KindSemantic)),
			telemetry.AttrProvider.String(provider.Name()),
		)
		tr := s.runSemantic(testCtx, provider, test)
		telemetry.EndTest(span, tr)
		s.record(tr)
	}
	return ctx.Err()
}

// runSemantic navigates to the app, captures the page unless the provider
// looks for itself, and asks for a verdict.
func (s *session) runSemantic(ctx context.Context, provider verify.Provider, test scenario.SemanticTest) types.TestResult {
	start := time.Now()
	tr := types.NewTestResult(test.ID, types.KindSemantic)
	defer func() {
		tr.Duration = time.Since(start).Milliseconds()
	}()

	if err := test.Validate(); err != nil {
		tr.Fail(err)
		return tr
	}
	tr.Logf("Instruction: %s", test.Instruction)
	tr.Logf("Expected: %s", test.Expected)

	url := s.cfg.DevServer.BaseURL()
	if err := s.page.Goto(url, s.cfg.Browser.Timeout); err != nil {
		tr.Fail(err)
		tr.Logf("Error: %s", err.Error())
		return tr
	}

	req := verify.Request{
		TestID:      test.ID,
		Instruction: test.Instruction,
		Expected:    test.Expected,
	}
	if !provider.Agentic() {
		path := filepath.Join(s.screenshotDir, test.ID+"-current.png")
		if err := s.page.Screenshot(path); err != nil {
			tr.Fail(fmt.Errorf("failed to capture screenshot: %w", err))
			tr.Logf("Error: %s", tr.Error)
			return tr
		}
		tr.Screenshots = append(tr.Screenshots, path)
		req.ScreenshotPath = path
	}

	if test.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(test.Timeout)*time.Millisecond)
		defer cancel()
	}

	verdict, err := provider.Verify(ctx, req)
	if err != nil {
		if s.runner.metrics != nil {
			s.runner.metrics.ProviderError(provider.Name())
		}
		tr.Fail(fmt.Errorf("verification failed: %w", err))
		tr.Logf("Error: %s", err.Error())
		return tr
	}

	tr.Verdict = &verdict
	tr.Passed = verdict.Passed
	if !verdict.Passed {
		tr.Error = verdict.Reasoning
	}
	tr.Logf("Reasoning: %s", verdict.Reasoning)
	tr.Logf("Confidence: %g", verdict.Confidence)
	if verdict.Details != "" {
		tr.Logf("Details: %s", verdict.Details)
	}
	return tr
}

func (s *session) record(tr types.TestResult) {
	s.result.Add(tr)
	s.runner.console.TestResult(tr)
	event := s.logger.Info()
	if !tr.Passed {
		event = s.logger.Warn().Str("error", tr.Error)
	}
	event.Str("test", tr.TestID).Str("kind", string(tr.Kind)).Bool("passed", tr.Passed).Int64("duration_ms", tr.Duration).Msg("test finished")
}

// cleanup closes the browser, then stops the dev server. It runs once;
// failures are logged.
func (s *session) cleanup() {
	if s.cleaned {
		return
	}
	s.cleaned = true

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close browser")
		}
	}
	if s.serverStarted {
		s.runner.console.Verbosef("Stopping dev server...")
		if err := s.runner.server.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to stop dev server")
			s.runner.console.Warningf("Failed to stop dev server: %v", err)
		}
	}
}
