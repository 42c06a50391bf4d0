// Package executor runs declarative browser tests against a page.
package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// ScrollStep is the distance a scroll action moves the viewport, in pixels.
const ScrollStep = 500

// Page is the browser surface the executor drives. *browser.Session implements it.
type Page interface {
	Goto(url string, timeout time.Duration) error
	WaitForSelector(selector string, timeout time.Duration) error
	Click(selector string) error
	Fill(selector, value string) error
	Hover(selector string) error
	ScrollBy(dy int) error
	Screenshot(path string) error
	Count(selector string) (int, error)
	Visible(selector string) (bool, error)
	Text(selector string) (string, bool, error)
	Attribute(selector, name string) (string, bool, error)
}

// Executor runs browser tests one at a time.
type Executor struct {
	page            Page
	screenshotDir   string
	logger          zerolog.Logger
	navTimeout      time.Duration
	selectorTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithTimeouts overrides the navigation and selector wait bounds.
func WithTimeouts(navigation, selector time.Duration) Option {
	return func(e *Executor) {
		e.navTimeout = navigation
		e.selectorTimeout = selector
	}
}

// New returns an Executor writing screenshots under screenshotDir.
func New(page Page, screenshotDir string, opts ...Option) *Executor {
	e := &Executor{
		page:            page,
		screenshotDir:   screenshotDir,
		logger:          zerolog.Nop(),
		navTimeout:      30 * time.Second,
		selectorTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes test and always returns a result. Any failure, including an
// invalid declaration, is reported through the result rather than returned.
// Failures after the page was touched also capture <id>-failure.png.
func (e *Executor) Run(ctx context.Context, test scenario.BrowserTest) types.TestResult {
	start := time.Now()
	result := types.NewTestResult(test.ID, types.KindBrowser)
	logger := e.logger.With().Str("test", test.ID).Logger()

	if err := test.Validate(); err != nil {
		logger.Warn().Err(err).Msg("invalid browser test")
		result.Fail(err)
		result.Duration = time.Since(start).Milliseconds()
		return result
	}

	if err := e.run(ctx, &test, &result); err != nil {
		logger.Info().Err(err).Msg("browser test failed")
		result.Fail(err)
		e.captureFailure(&test, &result, logger)
	} else {
		result.Passed = true
	}

	result.Duration = time.Since(start).Milliseconds()
	return result
}

func (e *Executor) run(ctx context.Context, test *scenario.BrowserTest, result *types.TestResult) error {
	result.Logf("Navigating to %s", test.URL)
	if err := e.page.Goto(test.URL, e.navTimeout); err != nil {
		return err
	}

	for _, action := range test.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Logf("Action: %s", action.Describe())
		if err := e.runAction(ctx, action, result); err != nil {
			return err
		}
	}

	for _, assertion := range test.Assertions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.check(assertion, result); err != nil {
			return err
		}
		result.Logf("Assertion passed: %s on %s", assertion.Type, assertion.Selector)
	}
	return nil
}

func (e *Executor) runAction(ctx context.Context, a scenario.Action, result *types.TestResult) error {
	switch a.Type {
	case scenario.ActionClick:
		if err := e.page.WaitForSelector(a.Selector, e.selectorTimeout); err != nil {
			return err
		}
		return e.page.Click(a.Selector)

	case scenario.ActionTypeText:
		if err := e.page.WaitForSelector(a.Selector, e.selectorTimeout); err != nil {
			return err
		}
		return e.page.Fill(a.Selector, a.Value)

	case scenario.ActionHover:
		if err := e.page.WaitForSelector(a.Selector, e.selectorTimeout); err != nil {
			return err
		}
		return e.page.Hover(a.Selector)

	case scenario.ActionNavigate:
		return e.page.Goto(a.URL, e.navTimeout)

	case scenario.ActionWait:
		return sleepContext(ctx, time.Duration(a.WaitMs())*time.Millisecond)

	case scenario.ActionScroll:
		dy := ScrollStep
		if a.ScrollDirection() == scenario.ScrollUp {
			dy = -ScrollStep
		}
		return e.page.ScrollBy(dy)

	case scenario.ActionScreenshot:
		path := e.screenshotPath(a.Filename)
		if err := e.page.Screenshot(path); err != nil {
			return err
		}
		result.Screenshots = append(result.Screenshots, path)
		return nil

	default:
		return &types.ValidationError{Kind: "action", Type: string(a.Type), Msg: "unknown action type"}
	}
}

// screenshotPath resolves a caller-supplied name against the screenshot
// directory, or derives a sortable timestamped one.
func (e *Executor) screenshotPath(filename string) string {
	if filename == "" {
		filename = fmt.Sprintf("screenshot-%s.png", ulid.Make().String())
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(e.screenshotDir, filename)
}

func (e *Executor) check(a scenario.Assertion, result *types.TestResult) error {
	ok, detail, err := e.evaluate(a)
	if err != nil {
		detail = err.Error()
	}
	if ok {
		return nil
	}
	if detail != "" {
		result.Logf("Assertion %s on %s: %s", a.Type, a.Selector, detail)
	}
	return &types.AssertionError{Type: string(a.Type), Selector: a.Selector, Detail: detail}
}

func (e *Executor) evaluate(a scenario.Assertion) (bool, string, error) {
	switch a.Type {
	case scenario.AssertExists:
		n, err := e.page.Count(a.Selector)
		if err != nil {
			return false, "", err
		}
		return n > 0, "no matching element", nil

	case scenario.AssertVisible:
		visible, err := e.page.Visible(a.Selector)
		if err != nil {
			return false, "", err
		}
		return visible, "element is missing or hidden", nil

	case scenario.AssertText:
		text, found, err := e.page.Text(a.Selector)
		if err != nil {
			return false, "", err
		}
		if !found {
			return false, "no matching element", nil
		}
		text = strings.TrimSpace(text)
		want := a.Expected.String()
		return strings.Contains(text, want), fmt.Sprintf("text %q does not contain %q", text, want), nil

	case scenario.AssertCount:
		want, err := a.Expected.Int()
		if err != nil {
			return false, "", err
		}
		n, err := e.page.Count(a.Selector)
		if err != nil {
			return false, "", err
		}
		return n == want, fmt.Sprintf("found %d elements, want %d", n, want), nil

	case scenario.AssertAttribute:
		value, found, err := e.page.Attribute(a.Selector, a.Attribute)
		if err != nil {
			return false, "", err
		}
		if !found {
			return false, fmt.Sprintf("attribute %s is missing", a.Attribute), nil
		}
		want := a.Expected.String()
		return value == want, fmt.Sprintf("attribute %s is %q, want %q", a.Attribute, value, want), nil

	default:
		return false, "", &types.ValidationError{Kind: "assertion", Type: string(a.Type), Msg: "unknown assertion type"}
	}
}

func (e *Executor) captureFailure(test *scenario.BrowserTest, result *types.TestResult, logger zerolog.Logger) {
	path := filepath.Join(e.screenshotDir, test.ID+"-failure.png")
	if err := e.page.Screenshot(path); err != nil {
		logger.Warn().Err(err).Msg("failed to capture failure screenshot")
		return
	}
	result.Screenshots = append(result.Screenshots, path)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
