package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// Session owns one Playwright browser, context and page.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	logger  zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open installs Playwright if needed, launches Chromium and opens one page.
func Open(opts Options) (*Session, error) {
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	// Keep driver output away from the results printed on stdout.
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if !opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	s := &Session{logger: opts.Logger}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	s.pw = pw

	args := append(append([]string{}, DefaultArgs...), opts.Args...)
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     args,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	s.browser = browser

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	s.context = bctx

	page, err := bctx.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	s.page = page

	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.logger.Info().Str("type", msg.Type()).Msg(msg.Text())
	})
	page.OnPageError(func(err error) {
		s.logger.Warn().Err(err).Msg("page error")
	})

	return s, nil
}

// Close releases the page, context, browser and Playwright driver. It is safe
// to call more than once, on a nil session and on a partially opened one.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}

	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			errs = append(errs, s.page.Close())
		}
		if s.context != nil {
			errs = append(errs, s.context.Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Close())
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// Goto navigates and waits until the network has settled.
func (s *Session) Goto(url string, timeout time.Duration) error {
	waitUntil := playwright.WaitUntilState("networkidle")
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   milliseconds(timeout),
	})
	if err != nil {
		return wrapTimeout("navigate to "+url, err)
	}
	return nil
}

// URL returns the current page URL.
func (s *Session) URL() string {
	return s.page.URL()
}

func wrapTimeout(op string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return &types.TimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
