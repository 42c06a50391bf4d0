package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Agent action types understood by the UI-TARS loop.
const (
	actClick       = "click"
	actDoubleClick = "left_double"
	actRightClick  = "right_single"
	actHover       = "hover"
	actType        = "type"
	actHotkey      = "hotkey"
	actScroll      = "scroll"
	actWait        = "wait"
	actFinished    = "finished"
	actCallUser    = "call_user"
)

// coordinateScale is the range of model coordinates on each axis.
const coordinateScale = 1000.0

// prediction is one parsed model turn.
type prediction struct {
	Thought string
	Action  agentAction
}

type agentAction struct {
	Type string
	Args map[string]string
}

var (
	callPattern   = regexp.MustCompile(`(?s)^([a-z_]+)\((.*)\)$`)
	argPattern    = regexp.MustCompile(`(\w+)\s*=\s*(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")`)
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// parsePrediction reads a "Thought: ... Action: ..." reply. Only the first
// action is used when the model emits several.
func parsePrediction(reply string) (prediction, error) {
	reply = strings.TrimSpace(reply)
	var p prediction

	idx := strings.LastIndex(reply, "Action:")
	if idx < 0 {
		return p, fmt.Errorf("no action in model reply")
	}
	head, actionText := reply[:idx], strings.TrimSpace(reply[idx+len("Action:"):])
	if t := strings.Index(head, "Thought:"); t >= 0 {
		p.Thought = strings.TrimSpace(head[t+len("Thought:"):])
	} else {
		p.Thought = strings.TrimSpace(head)
	}

	if blank := strings.Index(actionText, "\n\n"); blank >= 0 {
		actionText = strings.TrimSpace(actionText[:blank])
	}
	m := callPattern.FindStringSubmatch(actionText)
	if m == nil {
		return p, fmt.Errorf("malformed action %q", actionText)
	}

	p.Action = agentAction{Type: m[1], Args: map[string]string{}}
	for _, arg := range argPattern.FindAllStringSubmatch(m[2], -1) {
		value := arg[2]
		if value == "" {
			value = arg[3]
		}
		p.Action.Args[arg[1]] = unescape(value)
	}
	return p, nil
}

func unescape(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\'`, "'", `\"`, `"`, `\\`, `\`)
	return r.Replace(s)
}

// point resolves a box or point argument to page coordinates. A four-number
// box resolves to its centre.
func (a agentAction) point(width, height int) (x, y float64, ok bool) {
	raw := a.Args["start_box"]
	if raw == "" {
		raw = a.Args["point"]
	}
	nums := numberPattern.FindAllString(raw, -1)
	if len(nums) != 2 && len(nums) != 4 {
		return 0, 0, false
	}
	v := make([]float64, len(nums))
	for i, n := range nums {
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, 0, false
		}
		v[i] = f
	}
	nx, ny := v[0], v[1]
	if len(v) == 4 {
		nx, ny = (v[0]+v[2])/2, (v[1]+v[3])/2
	}
	return nx / coordinateScale * float64(width), ny / coordinateScale * float64(height), true
}

var keyNames = map[string]string{
	"ctrl":      "Control",
	"control":   "Control",
	"shift":     "Shift",
	"alt":       "Alt",
	"option":    "Alt",
	"cmd":       "Meta",
	"command":   "Meta",
	"meta":      "Meta",
	"win":       "Meta",
	"enter":     "Enter",
	"return":    "Enter",
	"esc":       "Escape",
	"escape":    "Escape",
	"tab":       "Tab",
	"space":     "Space",
	"backspace": "Backspace",
	"delete":    "Delete",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
	"home":      "Home",
	"end":       "End",
}

// playwrightChord converts "ctrl c" or "ctrl+c" into "Control+c".
func playwrightChord(key string) string {
	fields := strings.FieldsFunc(key, func(r rune) bool { return r == ' ' || r == '+' })
	for i, f := range fields {
		if name, ok := keyNames[strings.ToLower(f)]; ok {
			fields[i] = name
		}
	}
	return strings.Join(fields, "+")
}
