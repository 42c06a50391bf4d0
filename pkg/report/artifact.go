package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/guitest/pkg/types"
)

// Artifact file names.
const (
	ResultsFile = "results.json"
	SummaryFile = "summary.md"
)

// ArtifactWriter writes run artifacts into a directory.
type ArtifactWriter struct {
	outputDir string
	json      bool
	markdown  bool
}

// NewArtifactWriter returns a writer producing results.json when json is set
// and summary.md when markdown is set.
func NewArtifactWriter(outputDir string, json, markdown bool) *ArtifactWriter {
	return &ArtifactWriter{outputDir: outputDir, json: json, markdown: markdown}
}

// WriteAll writes every enabled artifact and returns the paths written.
func (w *ArtifactWriter) WriteAll(project string, r *types.RunResult) ([]string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	if w.json {
		path, err := w.WriteResultsJSON(r)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if w.markdown {
		path, err := w.WriteSummaryMarkdown(project, r)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteResultsJSON writes the full run result.
func (w *ArtifactWriter) WriteResultsJSON(r *types.RunResult) (string, error) {
	path := filepath.Join(w.outputDir, ResultsFile)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", ResultsFile, err)
	}
	return path, nil
}

// WriteSummaryMarkdown writes a human-readable summary.
func (w *ArtifactWriter) WriteSummaryMarkdown(project string, r *types.RunResult) (string, error) {
	path := filepath.Join(w.outputDir, SummaryFile)

	var md strings.Builder
	md.WriteString("# GUI Test Summary\n\n")
	if project != "" {
		fmt.Fprintf(&md, "**Project:** %s\n\n", project)
	}
	fmt.Fprintf(&md, "**Story:** %s\n\n", r.StoryID)
	if r.RunID != "" {
		fmt.Fprintf(&md, "**Run:** %s\n\n", r.RunID)
	}
	fmt.Fprintf(&md, "**Started:** %s\n\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&md, "**Duration:** %s\n\n", time.Duration(r.Duration)*time.Millisecond)

	md.WriteString("## Result\n\n")
	switch {
	case r.Failed():
		fmt.Fprintf(&md, "❌ **%d of %d tests failed**\n\n", r.FailedTests, r.TotalTests)
	case r.TotalTests == 0:
		md.WriteString("⚠️ **No tests were run**\n\n")
	default:
		fmt.Fprintf(&md, "✅ **All %d tests passed**\n\n", r.TotalTests)
	}
	if r.SkippedReason != "" {
		fmt.Fprintf(&md, "%s\n\n", r.SkippedReason)
	}

	if len(r.Results) > 0 {
		md.WriteString("## Tests\n\n")
		md.WriteString("| Test | Kind | Result | Duration | Error |\n")
		md.WriteString("|---|---|---|---|---|\n")
		for _, res := range r.Results {
			status := "✅"
			if !res.Passed {
				status = "❌"
			}
			fmt.Fprintf(&md, "| `%s` | %s | %s | %dms | %s |\n", res.TestID, res.Kind, status, res.Duration, escapeCell(res.Error))
		}
		md.WriteString("\n")
	}

	var shots []string
	for _, res := range r.Results {
		shots = append(shots, res.Screenshots...)
	}
	if len(shots) > 0 {
		md.WriteString("## Screenshots\n\n")
		for _, s := range shots {
			fmt.Fprintf(&md, "- `%s`\n", s)
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(md.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", SummaryFile, err)
	}
	return path, nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
