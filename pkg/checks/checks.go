// Package checks runs a document's quality checks (type checks, linters,
// unit tests) as shell commands and reports each one as a test result.
package checks

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/entrhq/guitest/pkg/types"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Minute

// maxOutput is how much of a failing check's output is kept, from the end.
const maxOutput = 4000

// Check is one validation step.
type Check interface {
	Name() string
	Run(ctx context.Context, dir string) error
}

// CommandCheck runs a shell command.
type CommandCheck struct {
	name    string
	command string
	timeout time.Duration
}

// NewCommandCheck returns a check running command through the platform shell.
func NewCommandCheck(name, command string, timeout time.Duration) *CommandCheck {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandCheck{name: name, command: command, timeout: timeout}
}

// Name returns the check's name.
func (c *CommandCheck) Name() string {
	return c.name
}

// Run executes the command in dir and returns a *CheckError when it fails.
func (c *CommandCheck) Run(ctx context.Context, dir string) error {
	if strings.TrimSpace(c.command) == "" {
		return fmt.Errorf("%w: check %q has no command", types.ErrConfig, c.name)
	}

	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := shellCommand(execCtx, c.command)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = &types.TimeoutError{Op: "check " + c.name, Err: err}
		}
		return &CheckError{Name: c.name, Command: c.command, Output: tail(string(output)), Err: err}
	}
	return nil
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// CheckError is a failed check with its captured output.
type CheckError struct {
	Name    string
	Command string
	Output  string
	Err     error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("quality check '%s' failed: %v", e.Name, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// FromDocument builds checks from a document's qualityChecks map, ordered by
// name so runs are reproducible.
func FromDocument(qualityChecks map[string]string, timeout time.Duration) []Check {
	names := make([]string, 0, len(qualityChecks))
	for name := range qualityChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Check, 0, len(names))
	for _, name := range names {
		out = append(out, NewCommandCheck(name, qualityChecks[name], timeout))
	}
	return out
}

// RunAll runs every check in order and returns one result per check. It stops
// early only when ctx is done.
func RunAll(ctx context.Context, dir string, checks []Check) []types.TestResult {
	results := make([]types.TestResult, 0, len(checks))
	for _, c := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, runOne(ctx, dir, c))
	}
	return results
}

func runOne(ctx context.Context, dir string, c Check) types.TestResult {
	start := time.Now()
	r := types.NewTestResult("check:"+c.Name(), types.KindCheck)
	if cc, ok := c.(*CommandCheck); ok {
		r.Logf("Command: %s", cc.command)
	}

	err := c.Run(ctx, dir)
	r.Duration = time.Since(start).Milliseconds()
	if err != nil {
		r.Fail(err)
		if ce, ok := err.(*CheckError); ok && ce.Output != "" {
			r.Logf("Output:\n%s", ce.Output)
		}
		return r
	}
	r.Passed = true
	return r
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxOutput {
		return s
	}
	return "..." + s[len(s)-maxOutput:]
}
