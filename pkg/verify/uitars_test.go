package verify

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrediction(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		thought string
		action  string
		args    map[string]string
		wantErr bool
	}{
		{
			name:    "click box",
			reply:   "Thought: The submit button is at the bottom.\nAction: click(start_box='<|box_start|>(500,900)<|box_end|>')",
			thought: "The submit button is at the bottom.",
			action:  actClick,
			args:    map[string]string{"start_box": "<|box_start|>(500,900)<|box_end|>"},
		},
		{
			name:    "type with escaped newline",
			reply:   "Thought: Enter the name.\nAction: type(content='Ada\\n')",
			thought: "Enter the name.",
			action:  actType,
			args:    map[string]string{"content": "Ada\n"},
		},
		{
			name:    "finished with quotes",
			reply:   "Thought: Done.\nAction: finished(content='The banner says \\'Saved\\'')",
			thought: "Done.",
			action:  actFinished,
			args:    map[string]string{"content": "The banner says 'Saved'"},
		},
		{
			name:    "first of several actions",
			reply:   "Thought: Scroll then wait.\nAction: scroll(direction='down')\n\nwait()",
			thought: "Scroll then wait.",
			action:  actScroll,
			args:    map[string]string{"direction": "down"},
		},
		{
			name:    "no arguments",
			reply:   "Thought: Cannot find it.\nAction: call_user()",
			thought: "Cannot find it.",
			action:  actCallUser,
			args:    map[string]string{},
		},
		{name: "missing action", reply: "I am not sure what to do.", wantErr: true},
		{name: "malformed call", reply: "Thought: x\nAction: click the button", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parsePrediction(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.thought, p.Thought)
			assert.Equal(t, tt.action, p.Action.Type)
			assert.Equal(t, tt.args, p.Action.Args)
		})
	}
}

func TestAgentActionPoint(t *testing.T) {
	tests := []struct {
		arg    string
		x, y   float64
		wantOK bool
	}{
		{arg: "<|box_start|>(500,500)<|box_end|>", x: 960, y: 540, wantOK: true},
		{arg: "(100,200,300,400)", x: 384, y: 324, wantOK: true},
		{arg: "<point>250 1000</point>", x: 480, y: 1080, wantOK: true},
		{arg: "(12)"},
		{arg: ""},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			a := agentAction{Args: map[string]string{"start_box": tt.arg}}
			x, y, ok := a.point(1920, 1080)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.x, x, 1e-6)
				assert.InDelta(t, tt.y, y, 1e-6)
			}
		})
	}
}

func TestPlaywrightChord(t *testing.T) {
	assert.Equal(t, "Control+c", playwrightChord("ctrl c"))
	assert.Equal(t, "Control+Shift+t", playwrightChord("ctrl+shift+t"))
	assert.Equal(t, "Enter", playwrightChord("enter"))
	assert.Equal(t, "ArrowDown", playwrightChord("down"))
}

// fakeOperator records operations in call order.
type fakeOperator struct {
	calls   []string
	shotErr error
}

func (o *fakeOperator) ViewportSize() (int, int) { return 1920, 1080 }

func (o *fakeOperator) CaptureViewport() ([]byte, error) {
	if o.shotErr != nil {
		return nil, o.shotErr
	}
	return pngBytes, nil
}

func (o *fakeOperator) MouseClick(x, y float64, button string, count int) error {
	o.calls = append(o.calls, fmt.Sprintf("click %s x%d (%.0f,%.0f)", button, count, x, y))
	return nil
}

func (o *fakeOperator) MouseMove(x, y float64) error {
	o.calls = append(o.calls, fmt.Sprintf("move (%.0f,%.0f)", x, y))
	return nil
}

func (o *fakeOperator) MouseWheel(dx, dy float64) error {
	o.calls = append(o.calls, fmt.Sprintf("wheel (%.0f,%.0f)", dx, dy))
	return nil
}

func (o *fakeOperator) TypeText(text string) error {
	o.calls = append(o.calls, "type "+text)
	return nil
}

func (o *fakeOperator) PressKey(key string) error {
	o.calls = append(o.calls, "press "+key)
	return nil
}

func scriptedAgent(t *testing.T, op Operator, maxSteps int, replies ...string) (Provider, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := rec.server(t, func(n int) (int, string) {
		if n > len(replies) {
			return http.StatusOK, completionJSON(replies[len(replies)-1])
		}
		return http.StatusOK, completionJSON(replies[n-1])
	})
	p, err := New(Settings{Provider: ProviderUITars, APIKey: "k", BaseURL: srv.URL, MaxSteps: maxSteps}, Deps{Operator: op})
	require.NoError(t, err)
	return p, rec
}

func TestUITarsAgent_Finished(t *testing.T) {
	op := &fakeOperator{}
	p, rec := scriptedAgent(t, op, 0,
		"Thought: Click the toggle.\nAction: click(start_box='(500,500)')",
		"Thought: Type the query.\nAction: type(content='shoes\\n')",
		"Thought: Results are listed.\nAction: finished(content='Search results are shown')",
	)
	assert.True(t, p.Agentic())

	got, err := p.Verify(context.Background(), Request{Instruction: "Search for shoes", Expected: "Results appear"})
	require.NoError(t, err)

	assert.True(t, got.Passed)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, "Search results are shown", got.Reasoning)
	assert.Equal(t, []string{"click left x1 (960,540)", "type shoes", "press Enter"}, op.calls)

	require.Equal(t, 3, rec.count())
	body, _, _ := rec.request(2)
	assert.Equal(t, DefaultUITarsModel, body["model"])
	messages := body["messages"].([]any)
	// prompt, then screenshot and reply per earlier step, then the latest screenshot
	assert.Len(t, messages, 1+2+2+1)
}

func TestUITarsAgent_CallUserFails(t *testing.T) {
	p, _ := scriptedAgent(t, &fakeOperator{}, 0,
		"Thought: The banner is red, not green.\nAction: call_user()",
	)

	got, err := p.Verify(context.Background(), Request{Instruction: "i", Expected: "green banner"})
	require.NoError(t, err)
	assert.False(t, got.Passed)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)
	assert.Equal(t, "The banner is red, not green.", got.Reasoning)
	assert.Equal(t, string(StatusCallUser), got.Details)
}

func TestUITarsAgent_MaxSteps(t *testing.T) {
	op := &fakeOperator{}
	p, rec := scriptedAgent(t, op, 3, "Thought: Keep looking.\nAction: scroll(direction='up')")

	got, err := p.Verify(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, got.Passed)
	assert.Equal(t, string(StatusMaxLoop), got.Details)
	assert.Equal(t, 3, rec.count())
	assert.Equal(t, []string{"wheel (0,-500)", "wheel (0,-500)", "wheel (0,-500)"}, op.calls)
}

func TestUITarsAgent_UnparsableReply(t *testing.T) {
	p, _ := scriptedAgent(t, &fakeOperator{}, 0, "no idea")

	got, err := p.Verify(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, got.Passed)
	assert.Equal(t, "no idea", got.Reasoning)
	assert.Contains(t, got.Details, string(StatusError))
}

func TestUITarsAgent_DefaultReasoning(t *testing.T) {
	p, _ := scriptedAgent(t, &fakeOperator{}, 0, "Action: finished()")

	got, err := p.Verify(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, got.Passed)
	assert.Equal(t, "Verification completed successfully", got.Reasoning)
}

func TestUITarsAgent_ScreenshotFailure(t *testing.T) {
	p, rec := scriptedAgent(t, &fakeOperator{shotErr: fmt.Errorf("page closed")}, 0, "Action: finished()")

	got, err := p.Verify(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, got.Passed)
	assert.Equal(t, "Verification failed", got.Reasoning)
	assert.Contains(t, got.Details, "page closed")
	assert.Zero(t, rec.count())
}

func TestUITarsAgent_Canceled(t *testing.T) {
	p, _ := scriptedAgent(t, &fakeOperator{}, 0, "Action: finished()")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Verify(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
