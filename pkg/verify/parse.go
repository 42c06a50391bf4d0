package verify

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/entrhq/guitest/pkg/types"
)

const (
	noReasoning       = "No reasoning provided"
	unparsableVerdict = "Failed to parse VLM response"
	defaultConfidence = 0.5
)

var (
	jsonFence  = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	plainFence = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// judgment is the JSON object judges are asked to answer with. Fields are
// loosely typed because models do not always follow the schema.
type judgment struct {
	Passed     any `json:"passed"`
	Reasoning  any `json:"reasoning"`
	Confidence any `json:"confidence"`
	Details    any `json:"details"`
}

// ParseJudgment converts a model reply into a verdict. It never fails: a
// reply that is not a JSON object yields a failing verdict carrying the raw
// text in Details.
func ParseJudgment(raw string) types.Verification {
	body := raw
	if m := jsonFence.FindStringSubmatch(raw); m != nil {
		body = m[1]
	} else if m := plainFence.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}

	var j judgment
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &j); err != nil {
		return types.Verification{Passed: false, Reasoning: unparsableVerdict, Confidence: 0, Details: raw}
	}

	v := types.Verification{
		Passed:     truthy(j.Passed),
		Reasoning:  noReasoning,
		Confidence: defaultConfidence,
	}
	if s, ok := j.Reasoning.(string); ok && s != "" {
		v.Reasoning = s
	}
	if c, ok := j.Confidence.(float64); ok {
		v.Confidence = c
	}
	switch d := j.Details.(type) {
	case nil:
	case string:
		v.Details = d
	default:
		if b, err := json.Marshal(d); err == nil {
			v.Details = string(b)
		}
	}
	return v
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
