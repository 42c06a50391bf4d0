package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/guitest/pkg/types"
)

// Level is the console verbosity.
type Level int

const (
	// LevelQuiet shows only warnings, errors and the final summary
	LevelQuiet Level = iota
	// LevelNormal shows run progress (default)
	LevelNormal
	// LevelVerbose adds per-test logs
	LevelVerbose
	// LevelDebug adds internal details
	LevelDebug
)

// ParseLevel converts quiet, normal, verbose or debug to a Level.
// Anything else is LevelNormal.
func ParseLevel(s string) Level {
	switch s {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

// Console prints human-readable run progress.
type Console struct {
	level  Level
	writer io.Writer
	st     styles
	steps  int
}

// NewConsole returns a Console writing to w. Colors are used only when w is
// a terminal.
func NewConsole(w io.Writer, level Level) *Console {
	return &Console{
		level:  level,
		writer: w,
		st:     newStyles(lipgloss.NewRenderer(w)),
	}
}

func (c *Console) println(style lipgloss.Style, s string) {
	fmt.Fprintln(c.writer, style.Render(s))
}

// Header prints a prominent banner.
func (c *Console) Header(message string) {
	if c.level < LevelNormal {
		return
	}
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(c.writer)
	c.println(c.st.header, rule)
	c.println(c.st.header, "  "+message)
	c.println(c.st.header, rule)
}

// Section prints a section divider.
func (c *Console) Section(title string) {
	if c.level < LevelNormal {
		return
	}
	fmt.Fprintln(c.writer)
	c.println(c.st.section, "▶ "+title)
	c.println(c.st.muted, strings.Repeat("─", 50))
}

// Step prints a numbered step.
func (c *Console) Step(message string) {
	if c.level < LevelNormal {
		return
	}
	c.steps++
	c.println(c.st.step, fmt.Sprintf("[%d] %s", c.steps, message))
}

// Successf prints a success line.
func (c *Console) Successf(format string, args ...any) {
	if c.level >= LevelNormal {
		c.println(c.st.success, "✓ "+fmt.Sprintf(format, args...))
	}
}

// Infof prints an informational line.
func (c *Console) Infof(format string, args ...any) {
	if c.level >= LevelNormal {
		c.println(c.st.info, fmt.Sprintf(format, args...))
	}
}

// Warningf prints a warning at every level.
func (c *Console) Warningf(format string, args ...any) {
	c.println(c.st.warning, "⚠ Warning: "+fmt.Sprintf(format, args...))
}

// Errorf prints an error at every level.
func (c *Console) Errorf(format string, args ...any) {
	c.println(c.st.err, "✗ Error: "+fmt.Sprintf(format, args...))
}

// Verbosef prints detail shown in verbose mode.
func (c *Console) Verbosef(format string, args ...any) {
	if c.level >= LevelVerbose {
		c.println(c.st.muted, "→ "+fmt.Sprintf(format, args...))
	}
}

// Debugf prints detail shown in debug mode.
func (c *Console) Debugf(format string, args ...any) {
	if c.level >= LevelDebug {
		c.println(c.st.muted, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}

// TestResult prints one finished test.
func (c *Console) TestResult(r types.TestResult) {
	if c.level < LevelNormal {
		return
	}
	took := (time.Duration(r.Duration) * time.Millisecond).Round(time.Millisecond)
	if r.Passed {
		c.println(c.st.success, fmt.Sprintf("  ✓ %s (%s)", r.TestID, took))
	} else {
		c.println(c.st.err, fmt.Sprintf("  ✗ %s (%s)", r.TestID, took))
		if r.Error != "" {
			c.println(c.st.muted, "    "+r.Error)
		}
	}
	if c.level >= LevelVerbose {
		for _, line := range r.Logs {
			c.println(c.st.muted, "    "+line)
		}
		for _, shot := range r.Screenshots {
			c.println(c.st.muted, "    screenshot: "+shot)
		}
	}
}

// Summary prints the final totals. It is shown at every level.
func (c *Console) Summary(r *types.RunResult) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(c.writer)
	c.println(c.st.header, rule)
	c.println(c.st.header, "  TEST SUMMARY")
	c.println(c.st.header, rule)

	status := c.st.success.Render("✓ PASSED")
	switch {
	case r.Failed():
		status = c.st.err.Render("✗ FAILED")
	case r.TotalTests == 0:
		status = c.st.warning.Render("⚠ NOTHING RUN")
	}
	fmt.Fprintf(c.writer, "  Status: %s\n", status)
	fmt.Fprintf(c.writer, "  Story: %s\n", r.StoryID)
	fmt.Fprintf(c.writer, "  Duration: %s\n", (time.Duration(r.Duration) * time.Millisecond).Round(time.Millisecond))
	fmt.Fprintf(c.writer, "  Total: %d  Passed: %d  Failed: %d", r.TotalTests, r.PassedTests, r.FailedTests)
	if r.SkippedTests > 0 {
		fmt.Fprintf(c.writer, "  Skipped: %d", r.SkippedTests)
	}
	fmt.Fprintln(c.writer)
	if r.SkippedReason != "" {
		c.println(c.st.muted, "  "+r.SkippedReason)
	}

	for _, res := range r.Results {
		if !res.Passed {
			c.println(c.st.err, fmt.Sprintf("    ✗ %s: %s", res.TestID, res.Error))
		}
	}
	c.println(c.st.header, rule)
}
