package browser

import (
	"time"

	"github.com/rs/zerolog"
)

// Options configures a new browser session.
type Options struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the page size; nil means 1920x1080
	Viewport *Viewport

	// Timeout sets the default timeout for page operations
	Timeout time.Duration

	// Args are extra Chromium command-line switches appended to DefaultArgs
	Args []string

	// SkipInstall skips downloading the Playwright driver and Chromium
	SkipInstall bool

	// Logger receives console messages and page errors
	Logger zerolog.Logger
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for session operations.
const (
	DefaultViewportWidth     = 1920
	DefaultViewportHeight    = 1080
	DefaultTimeout           = 30 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
	DefaultSelectorTimeout   = 10 * time.Second
)

// DefaultArgs are passed to every Chromium launch.
var DefaultArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
}

func milliseconds(d time.Duration) *float64 {
	ms := float64(d.Milliseconds())
	return &ms
}
