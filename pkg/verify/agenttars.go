package verify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/rs/zerolog"
)

// agent-tars defaults.
const (
	DefaultAgentTarsProvider = "volcengine"
	DefaultAgentTarsModel    = "doubao-1-5-ui-tars"

	// AgentTarsKeyEnv carries the API key to the CLI so it never appears on
	// the command line.
	AgentTarsKeyEnv = "ARK_API_KEY"

	cliPassConfidence = 0.85
	cliFailConfidence = 0.3
	maxReasoningTail  = 2000
)

// DefaultAgentTarsCommand launches the published CLI through npx.
var DefaultAgentTarsCommand = []string{"npx", "@agent-tars/cli"}

// AgentTars verifies an outcome by running the agent-tars CLI, which opens
// its own browser. The exit status is the verdict.
type AgentTars struct {
	command  []string
	provider string
	model    string
	apiKey   string
	dir      string
	logger   zerolog.Logger
}

// Name returns "agent-tars".
func (a *AgentTars) Name() string { return ProviderAgentTars }

// Agentic returns true.
func (a *AgentTars) Agentic() bool { return true }

func (a *AgentTars) args(goal string) []string {
	args := append([]string{}, a.command[1:]...)
	args = append(args,
		"run",
		"--input", goal,
		"--model.provider", a.provider,
		"--model.id", a.model,
		"--headless",
	)
	return args
}

// Verify runs the CLI to completion.
func (a *AgentTars) Verify(ctx context.Context, req Request) (types.Verification, error) {
	args := a.args(cliGoal(req.Instruction, req.Expected))

	display := append([]string{a.command[0]}, args...)
	a.logger.Info().Str("command", shellescape.QuoteCommand(display)).Msg("running agent-tars")

	cmd := exec.CommandContext(ctx, a.command[0], args...)
	cmd.Dir = a.dir
	cmd.Env = append(os.Environ(), AgentTarsKeyEnv+"="+a.apiKey)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return types.Verification{}, ctx.Err()
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		output = strings.TrimSpace(stderr.String())
	}
	output = tail(output, maxReasoningTail)

	if err == nil {
		if output == "" {
			output = agentPassReasoning
		}
		return types.Verification{Passed: true, Reasoning: output, Confidence: cliPassConfidence}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || output == "" {
		output = err.Error()
	}
	return types.Verification{
		Passed:     false,
		Reasoning:  output,
		Confidence: cliFailConfidence,
		Details:    strings.TrimSpace(stderr.String()),
	}, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
