package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/entrhq/guitest/pkg/types"
	"gopkg.in/yaml.v3"
)

// Document is a product requirements document with GUI tests attached to its stories.
type Document struct {
	Project       string            `json:"project" yaml:"project"`
	BranchName    string            `json:"branchName" yaml:"branchName"`
	Description   string            `json:"description" yaml:"description"`
	QualityChecks map[string]string `json:"qualityChecks,omitempty" yaml:"qualityChecks,omitempty"`
	GUITestConfig *GUITestConfig    `json:"guiTestConfig,omitempty" yaml:"guiTestConfig,omitempty"`
	UserStories   []Story           `json:"userStories" yaml:"userStories"`

	// Path is the file the document was loaded from.
	Path string `json:"-" yaml:"-"`
}

// GUITestConfig carries per-document overrides of the detected project settings.
type GUITestConfig struct {
	DevCommand    string `json:"devCommand" yaml:"devCommand"`
	DevURL        string `json:"devUrl" yaml:"devUrl"`
	DevPort       int    `json:"devPort" yaml:"devPort"`
	StartupWaitMs int    `json:"startupWaitMs,omitempty" yaml:"startupWaitMs,omitempty"`
}

// Story is one selectable scenario.
type Story struct {
	ID                 string         `json:"id" yaml:"id"`
	Title              string         `json:"title" yaml:"title"`
	Description        string         `json:"description" yaml:"description"`
	AcceptanceCriteria []string       `json:"acceptanceCriteria" yaml:"acceptanceCriteria"`
	Priority           int            `json:"priority" yaml:"priority"`
	Passes             bool           `json:"passes" yaml:"passes"`
	Notes              string         `json:"notes,omitempty" yaml:"notes,omitempty"`
	SemanticTests      []SemanticTest `json:"guiTests,omitempty" yaml:"guiTests,omitempty"`
	BrowserTests       []BrowserTest  `json:"browserTests,omitempty" yaml:"browserTests,omitempty"`
}

// HasTests reports whether the story declares anything to run.
func (s *Story) HasTests() bool {
	return len(s.BrowserTests) > 0 || len(s.SemanticTests) > 0
}

// SemanticTest is a natural-language check answered by a verification provider.
type SemanticTest struct {
	ID          string `json:"id" yaml:"id"`
	Instruction string `json:"instruction" yaml:"instruction"`
	Expected    string `json:"expected" yaml:"expected"`
	Timeout     int    `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
}

// Validate checks the fields every semantic test needs.
func (t *SemanticTest) Validate() error {
	switch {
	case t.ID == "":
		return &types.ValidationError{Kind: "semantic test", Type: t.Instruction, Field: "id"}
	case t.Instruction == "":
		return &types.ValidationError{Kind: "semantic test", Type: t.ID, Field: "instruction"}
	}
	return nil
}

// Load reads a document from path. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test document: %w", err)
	}

	doc, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse decodes a document; ext selects the format the way Load does.
func Parse(data []byte, ext string) (*Document, error) {
	doc := &Document{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// SelectStory returns the story with the given id, or when id is empty the first
// story not yet marked as passing. It returns nil when nothing matches.
func (d *Document) SelectStory(id string) *Story {
	for i := range d.UserStories {
		story := &d.UserStories[i]
		if id != "" {
			if story.ID == id {
				return story
			}
			continue
		}
		if !story.Passes {
			return story
		}
	}
	return nil
}

// Dir returns the directory holding the document, or "." when it was not loaded from disk.
func (d *Document) Dir() string {
	if d.Path == "" {
		return "."
	}
	return filepath.Dir(d.Path)
}
