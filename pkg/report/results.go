package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/guitest/pkg/types"
)

// ResultsMarker precedes the machine-readable results on stdout.
const ResultsMarker = "--- TEST RESULTS ---"

// PrintResults writes the marker line followed by r as indented JSON. When
// color is set the JSON is syntax highlighted.
func PrintResults(w io.Writer, r *types.RunResult, color bool) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	out := string(data)
	if color {
		out = highlightJSON(out, lipgloss.NewRenderer(w))
	}
	_, err = fmt.Fprintf(w, "\n%s\n%s\n", ResultsMarker, out)
	return err
}

type jsonPalette struct {
	key, str, num, keyword, punct lipgloss.Style
}

// highlightJSON colors JSON tokens. It returns code unchanged if the lexer
// fails.
func highlightJSON(code string, r *lipgloss.Renderer) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		return code
	}
	iter, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}

	p := jsonPalette{
		key:     r.NewStyle().Foreground(skyBlue),
		str:     r.NewStyle().Foreground(mintGreen),
		num:     r.NewStyle().Foreground(amber),
		keyword: r.NewStyle().Foreground(salmonPink).Bold(true),
		punct:   r.NewStyle().Foreground(mutedGray),
	}

	var b strings.Builder
	for token := iter(); token != chroma.EOF; token = iter() {
		style, ok := p.styleFor(token.Type)
		if !ok || strings.TrimSpace(token.Value) == "" {
			b.WriteString(token.Value)
			continue
		}
		b.WriteString(style.Render(token.Value))
	}
	return b.String()
}

func (p jsonPalette) styleFor(t chroma.TokenType) (lipgloss.Style, bool) {
	switch {
	case t == chroma.NameTag:
		return p.key, true
	case t.InCategory(chroma.LiteralString):
		return p.str, true
	case t.InCategory(chroma.LiteralNumber):
		return p.num, true
	case t.InCategory(chroma.Keyword):
		return p.keyword, true
	case t.InCategory(chroma.Punctuation):
		return p.punct, true
	}
	return lipgloss.Style{}, false
}
