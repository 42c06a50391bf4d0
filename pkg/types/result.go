package types

import (
	"fmt"
	"time"
)

// TestResult is the outcome of a single browser or semantic test.
type TestResult struct {
	TestID      string        `json:"testId"`
	Passed      bool          `json:"passed"`
	Duration    int64         `json:"duration"` // milliseconds
	Error       string        `json:"error,omitempty"`
	Screenshots []string      `json:"screenshots"`
	Logs        []string      `json:"logs"`
	Kind        TestKind      `json:"kind,omitempty"`
	Verdict     *Verification `json:"verification,omitempty"`
}

// TestKind distinguishes structural browser tests, model-judged semantic
// tests and command quality checks.
type TestKind string

const (
	KindBrowser  TestKind = "browser"
	KindSemantic TestKind = "semantic"
	KindCheck    TestKind = "check"
)

// Verification is the normalized answer of a verification provider.
type Verification struct {
	Passed     bool    `json:"passed"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details,omitempty"`
}

// NewTestResult returns an empty, failing result for id with non-nil slices.
func NewTestResult(id string, kind TestKind) TestResult {
	return TestResult{
		TestID:      id,
		Kind:        kind,
		Screenshots: []string{},
		Logs:        []string{},
	}
}

// Logf appends a formatted log line to the result.
func (r *TestResult) Logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// Fail marks the result failed with err's message.
func (r *TestResult) Fail(err error) {
	r.Passed = false
	if err != nil {
		r.Error = err.Error()
	}
}

// RunResult aggregates every TestResult produced for one story.
type RunResult struct {
	RunID         string       `json:"runId,omitempty"`
	StoryID       string       `json:"storyId"`
	StartedAt     time.Time    `json:"startedAt"`
	TotalTests    int          `json:"totalTests"`
	PassedTests   int          `json:"passedTests"`
	FailedTests   int          `json:"failedTests"`
	SkippedTests  int          `json:"skippedTests,omitempty"`
	Results       []TestResult `json:"results"`
	Duration      int64        `json:"duration"` // milliseconds
	SkippedReason string       `json:"skippedReason,omitempty"`
}

// NewRunResult returns an empty result for storyID.
func NewRunResult(storyID string) *RunResult {
	return &RunResult{
		StoryID:   storyID,
		StartedAt: time.Now(),
		Results:   []TestResult{},
	}
}

// Add appends r and updates the counters.
func (rr *RunResult) Add(r TestResult) {
	rr.Results = append(rr.Results, r)
	rr.TotalTests++
	if r.Passed {
		rr.PassedTests++
	} else {
		rr.FailedTests++
	}
}

// Finish stamps the overall duration.
func (rr *RunResult) Finish() {
	rr.Duration = time.Since(rr.StartedAt).Milliseconds()
}

// Failed reports whether any test failed.
func (rr *RunResult) Failed() bool {
	return rr.FailedTests > 0
}
