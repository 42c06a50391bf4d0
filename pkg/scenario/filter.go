package scenario

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter keeps the tests whose ids match at least one glob pattern.
type Filter struct {
	patterns []glob.Glob
}

// NewFilter compiles patterns. An empty pattern list matches everything.
func NewFilter(patterns ...string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid test filter %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Match reports whether id passes the filter.
func (f *Filter) Match(id string) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}
	for _, g := range f.patterns {
		if g.Match(id) {
			return true
		}
	}
	return false
}

// Apply returns a copy of story holding only the tests that pass the filter.
func (f *Filter) Apply(story *Story) *Story {
	if f == nil || len(f.patterns) == 0 {
		return story
	}

	out := *story
	out.BrowserTests = nil
	out.SemanticTests = nil
	for _, t := range story.BrowserTests {
		if f.Match(t.ID) {
			out.BrowserTests = append(out.BrowserTests, t)
		}
	}
	for _, t := range story.SemanticTests {
		if f.Match(t.ID) {
			out.SemanticTests = append(out.SemanticTests, t)
		}
	}
	return &out
}
