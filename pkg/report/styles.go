package report

import "github.com/charmbracelet/lipgloss"

// Palette shared by the console and the results highlighter.
var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	mintGreen   = lipgloss.Color("#A8E6CF")
	amber       = lipgloss.Color("#FFD580")
	skyBlue     = lipgloss.Color("#9AD0F5")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
	errorRed    = lipgloss.Color("#F87171")
)

type styles struct {
	header  lipgloss.Style
	section lipgloss.Style
	step    lipgloss.Style
	success lipgloss.Style
	info    lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
	plain   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:  r.NewStyle().Foreground(brightWhite).Bold(true),
		section: r.NewStyle().Foreground(skyBlue),
		step:    r.NewStyle().Foreground(skyBlue),
		success: r.NewStyle().Foreground(mintGreen).Bold(true),
		info:    r.NewStyle().Foreground(salmonPink),
		warning: r.NewStyle().Foreground(amber),
		err:     r.NewStyle().Foreground(errorRed).Bold(true),
		muted:   r.NewStyle().Foreground(mutedGray),
		plain:   r.NewStyle(),
	}
}
