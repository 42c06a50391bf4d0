package scenario

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/entrhq/guitest/pkg/types"
	"gopkg.in/yaml.v3"
)

// ActionType names one of the supported browser actions.
type ActionType string

const (
	ActionClick      ActionType = "click"
	ActionTypeText   ActionType = "type"
	ActionNavigate   ActionType = "navigate"
	ActionWait       ActionType = "wait"
	ActionScroll     ActionType = "scroll"
	ActionHover      ActionType = "hover"
	ActionScreenshot ActionType = "screenshot"
)

// Scroll directions.
const (
	ScrollUp   = "up"
	ScrollDown = "down"
)

// DefaultWaitMs is the delay applied by a wait action without an explicit delay.
const DefaultWaitMs = 1000

// Action is a single step of a browser test.
type Action struct {
	Type      ActionType `json:"type" yaml:"type"`
	Selector  string     `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value     string     `json:"value,omitempty" yaml:"value,omitempty"`
	URL       string     `json:"url,omitempty" yaml:"url,omitempty"`
	Delay     int        `json:"delay,omitempty" yaml:"delay,omitempty"` // milliseconds
	Direction string     `json:"direction,omitempty" yaml:"direction,omitempty"`
	Filename  string     `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// Validate rejects unknown action types and missing required fields.
func (a Action) Validate() error {
	switch a.Type {
	case ActionClick, ActionHover:
		if a.Selector == "" {
			return a.missing("selector")
		}
	case ActionTypeText:
		if a.Selector == "" {
			return a.missing("selector")
		}
		if a.Value == "" {
			return a.missing("value")
		}
	case ActionNavigate:
		if a.URL == "" {
			return a.missing("url")
		}
	case ActionWait:
		if a.Delay < 0 {
			return &types.ValidationError{Kind: "action", Type: string(a.Type), Msg: "delay cannot be negative"}
		}
	case ActionScroll, ActionScreenshot:
	case "":
		return &types.ValidationError{Kind: "action", Field: "type"}
	default:
		return &types.ValidationError{Kind: "action", Type: string(a.Type), Msg: "unknown action type"}
	}
	return nil
}

func (a Action) missing(field string) error {
	return &types.ValidationError{Kind: "action", Type: string(a.Type), Field: field}
}

// WaitMs returns the delay of a wait action.
func (a Action) WaitMs() int {
	if a.Delay > 0 {
		return a.Delay
	}
	return DefaultWaitMs
}

// ScrollDirection returns up or down; anything else scrolls down.
func (a Action) ScrollDirection() string {
	if a.Direction == ScrollUp {
		return ScrollUp
	}
	return ScrollDown
}

// Describe renders the action for logs.
func (a Action) Describe() string {
	switch a.Type {
	case ActionClick, ActionHover:
		return fmt.Sprintf("%s %s", a.Type, a.Selector)
	case ActionTypeText:
		return fmt.Sprintf("type %q into %s", a.Value, a.Selector)
	case ActionNavigate:
		return fmt.Sprintf("navigate %s", a.URL)
	case ActionWait:
		return fmt.Sprintf("wait %dms", a.WaitMs())
	case ActionScroll:
		return fmt.Sprintf("scroll %s", a.ScrollDirection())
	default:
		return string(a.Type)
	}
}

// AssertionType names one of the supported assertions.
type AssertionType string

const (
	AssertExists    AssertionType = "exists"
	AssertVisible   AssertionType = "visible"
	AssertText      AssertionType = "text"
	AssertCount     AssertionType = "count"
	AssertAttribute AssertionType = "attribute"
)

// Assertion is a structural check evaluated after a test's actions.
type Assertion struct {
	Type      AssertionType `json:"type" yaml:"type"`
	Selector  string        `json:"selector,omitempty" yaml:"selector,omitempty"`
	Expected  *Expected     `json:"expected,omitempty" yaml:"expected,omitempty"`
	Attribute string        `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// Validate rejects unknown assertion types and missing required fields.
func (a Assertion) Validate() error {
	switch a.Type {
	case AssertExists, AssertVisible, AssertText, AssertCount, AssertAttribute:
	case "":
		return &types.ValidationError{Kind: "assertion", Field: "type"}
	default:
		return &types.ValidationError{Kind: "assertion", Type: string(a.Type), Msg: "unknown assertion type"}
	}

	if a.Selector == "" {
		return a.missing("selector")
	}

	switch a.Type {
	case AssertText:
		if a.Expected == nil {
			return a.missing("expected")
		}
	case AssertCount:
		if a.Expected == nil {
			return a.missing("expected")
		}
		if _, err := a.Expected.Int(); err != nil {
			return &types.ValidationError{Kind: "assertion", Type: string(a.Type), Msg: "expected must be an integer"}
		}
	case AssertAttribute:
		if a.Attribute == "" {
			return a.missing("attribute")
		}
		if a.Expected == nil {
			return a.missing("expected")
		}
	}
	return nil
}

func (a Assertion) missing(field string) error {
	return &types.ValidationError{Kind: "assertion", Type: string(a.Type), Field: field}
}

// Expected holds an assertion's expected value, which documents may write as a
// string or a number.
type Expected struct {
	raw string
}

// NewExpected wraps s.
func NewExpected(s string) *Expected {
	return &Expected{raw: s}
}

// String returns the expected value as text.
func (e *Expected) String() string {
	if e == nil {
		return ""
	}
	return e.raw
}

// Int returns the expected value as an integer.
func (e *Expected) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(e.String()))
}

// UnmarshalJSON accepts a JSON string or number.
func (e *Expected) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected must be a string or number: %w", err)
	}
	e.raw = n.String()
	return nil
}

// MarshalJSON writes canonical integers as numbers and everything else as
// strings, so "007" and "+5" keep their text.
func (e Expected) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(e.raw); err == nil && strconv.Itoa(n) == e.raw {
		return []byte(e.raw), nil
	}
	return json.Marshal(e.raw)
}

// UnmarshalYAML accepts any scalar.
func (e *Expected) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected must be a scalar at line %d", value.Line)
	}
	e.raw = value.Value
	return nil
}

// MarshalYAML writes the raw scalar.
func (e Expected) MarshalYAML() (interface{}, error) {
	return e.raw, nil
}

// BrowserTest navigates to URL, runs Actions in order, then Assertions in order.
type BrowserTest struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	URL        string      `json:"url" yaml:"url"`
	Actions    []Action    `json:"actions" yaml:"actions"`
	Assertions []Assertion `json:"assertions" yaml:"assertions"`
}

// Validate checks the test and every action and assertion it declares.
func (t *BrowserTest) Validate() error {
	if t.ID == "" {
		return &types.ValidationError{Kind: "browser test", Type: t.Name, Field: "id"}
	}
	if t.URL == "" {
		return &types.ValidationError{Kind: "browser test", Type: t.ID, Field: "url"}
	}
	for i, action := range t.Actions {
		if err := action.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i+1, err)
		}
	}
	for i, assertion := range t.Assertions {
		if err := assertion.Validate(); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}
