package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
)

// UI-TARS defaults.
const (
	DefaultUITarsModel = "ui-tars-1.5-7b"
	DefaultMaxSteps    = 25

	agentPassConfidence = 0.9
	agentFailConfidence = 0.3
	agentPassReasoning  = "Verification completed successfully"
	agentFailReasoning  = "Verification failed"

	// keep only the most recent screenshots in the conversation
	maxHistoryImages = 3
	agentScrollStep  = 500
	agentWait        = 2 * time.Second
)

// Operator is the browser surface the agent acts on. *browser.Session
// implements it.
type Operator interface {
	ViewportSize() (width, height int)
	CaptureViewport() ([]byte, error)
	MouseClick(x, y float64, button string, count int) error
	MouseMove(x, y float64) error
	MouseWheel(dx, dy float64) error
	TypeText(text string) error
	PressKey(key string) error
}

// AgentStatus is the terminal state of an agent run.
type AgentStatus string

const (
	StatusEnd      AgentStatus = "END"
	StatusMaxLoop  AgentStatus = "MAX_LOOP"
	StatusError    AgentStatus = "ERROR"
	StatusCallUser AgentStatus = "CALL_USER"
)

type turn struct {
	screenshot []byte
	reply      string
}

// UITarsAgent verifies an outcome by letting a UI-TARS model operate the
// page until it declares the task finished or gives up.
type UITarsAgent struct {
	client   chatClient
	operator Operator
	maxSteps int
	wait     time.Duration
	logger   zerolog.Logger
}

// Name returns the provider name it was built for, ui-tars or huggingface.
func (a *UITarsAgent) Name() string { return a.client.name }

// Agentic returns true.
func (a *UITarsAgent) Agentic() bool { return true }

// Verify runs the agent loop against the live page.
func (a *UITarsAgent) Verify(ctx context.Context, req Request) (types.Verification, error) {
	status, last, err := a.Run(ctx, agentGoal(req.Instruction, req.Expected))
	if err != nil && ctx.Err() != nil {
		return types.Verification{}, err
	}

	v := types.Verification{Passed: status == StatusEnd, Reasoning: last}
	if v.Passed {
		v.Confidence = agentPassConfidence
		if v.Reasoning == "" {
			v.Reasoning = agentPassReasoning
		}
	} else {
		v.Confidence = agentFailConfidence
		if v.Reasoning == "" {
			v.Reasoning = agentFailReasoning
		}
		v.Details = string(status)
		if err != nil {
			v.Details += ": " + err.Error()
		}
	}
	return v, nil
}

// Run drives the page toward goal. It returns the terminal status, the last
// message from the model and the error that ended the run, if any.
func (a *UITarsAgent) Run(ctx context.Context, goal string) (AgentStatus, string, error) {
	var history []turn
	var last string

	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return StatusError, last, err
		}

		shot, err := a.operator.CaptureViewport()
		if err != nil {
			return StatusError, last, err
		}
		history = append(history, turn{screenshot: shot})

		reply, err := a.client.complete(ctx, chatRequest{Messages: a.messages(goal, history)})
		if err != nil {
			return StatusError, last, err
		}
		history[len(history)-1].reply = reply

		pred, err := parsePrediction(reply)
		if err != nil {
			a.logger.Warn().Err(err).Int("step", step).Msg("unparsable agent reply")
			return StatusError, strings.TrimSpace(reply), err
		}
		last = pred.Thought
		a.logger.Debug().Int("step", step).Str("action", pred.Action.Type).Str("thought", pred.Thought).Msg("agent step")

		switch pred.Action.Type {
		case actFinished:
			if content := pred.Action.Args["content"]; content != "" {
				last = content
			}
			return StatusEnd, last, nil
		case actCallUser:
			return StatusCallUser, last, nil
		}

		if err := a.execute(ctx, pred.Action); err != nil {
			return StatusError, last, err
		}
	}
	return StatusMaxLoop, last, nil
}

func (a *UITarsAgent) messages(goal string, history []turn) []openai.ChatCompletionMessageParamUnion {
	msgs := []openai.ChatCompletionMessageParamUnion{openai.UserMessage(uiTarsPrompt(goal))}
	for i, t := range history {
		if len(history)-i <= maxHistoryImages {
			img := encodeImage(t.screenshot, "image/png")
			msgs = append(msgs, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: img.dataURL()}),
			}))
		}
		if t.reply != "" {
			msgs = append(msgs, openai.AssistantMessage(t.reply))
		}
	}
	return msgs
}

func (a *UITarsAgent) execute(ctx context.Context, act agentAction) error {
	width, height := a.operator.ViewportSize()
	x, y, hasPoint := act.point(width, height)

	needPoint := func() error {
		if !hasPoint {
			return fmt.Errorf("%s action has no coordinates", act.Type)
		}
		return nil
	}

	switch act.Type {
	case actClick:
		if err := needPoint(); err != nil {
			return err
		}
		return a.operator.MouseClick(x, y, "left", 1)
	case actDoubleClick:
		if err := needPoint(); err != nil {
			return err
		}
		return a.operator.MouseClick(x, y, "left", 2)
	case actRightClick:
		if err := needPoint(); err != nil {
			return err
		}
		return a.operator.MouseClick(x, y, "right", 1)
	case actHover:
		if err := needPoint(); err != nil {
			return err
		}
		return a.operator.MouseMove(x, y)
	case actType:
		content := act.Args["content"]
		submit := strings.HasSuffix(content, "\n")
		if err := a.operator.TypeText(strings.TrimSuffix(content, "\n")); err != nil {
			return err
		}
		if submit {
			return a.operator.PressKey("Enter")
		}
		return nil
	case actHotkey:
		key := act.Args["key"]
		if key == "" {
			key = act.Args["hotkey"]
		}
		if key == "" {
			return errors.New("hotkey action has no key")
		}
		return a.operator.PressKey(playwrightChord(key))
	case actScroll:
		if hasPoint {
			if err := a.operator.MouseMove(x, y); err != nil {
				return err
			}
		}
		dx, dy := 0.0, 0.0
		switch strings.ToLower(act.Args["direction"]) {
		case "up":
			dy = -agentScrollStep
		case "left":
			dx = -agentScrollStep
		case "right":
			dx = agentScrollStep
		default:
			dy = agentScrollStep
		}
		return a.operator.MouseWheel(dx, dy)
	case actWait:
		t := time.NewTimer(a.wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	default:
		return fmt.Errorf("unsupported agent action %q", act.Type)
	}
}

func uiTarsPrompt(goal string) string {
	return `You are a GUI agent. You are given a task and your action history, with screenshots. You need to perform the next action to complete the task.

## Output Format
` + "```" + `
Thought: ...
Action: ...
` + "```" + `

## Action Space
click(start_box='<|box_start|>(x1,y1)<|box_end|>')
left_double(start_box='<|box_start|>(x1,y1)<|box_end|>')
right_single(start_box='<|box_start|>(x1,y1)<|box_end|>')
hover(start_box='<|box_start|>(x1,y1)<|box_end|>')
hotkey(key='ctrl c') # Split keys with a space and use lowercase.
type(content='xxx') # End content with "\n" to submit the input.
scroll(start_box='<|box_start|>(x1,y1)<|box_end|>', direction='down or up or right or left')
wait() # Sleep briefly and take a new screenshot.
finished(content='xxx') # The expected outcome is satisfied.
call_user() # The expected outcome is not satisfied or the task cannot be completed.

## Note
- Coordinates are on a 0-1000 scale for both axes.
- Use English in the Thought part.
- Summarize your next action in one sentence in the Thought part.

## User Instruction
` + goal
}
