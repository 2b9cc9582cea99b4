package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the watch view.
type Theme struct {
	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color
	BgAccent    lipgloss.Color

	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is a dark palette in the Tokyo Night family.
var DefaultTheme = Theme{
	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),
	BgAccent:    lipgloss.Color("#414868"),

	Accent:  lipgloss.Color("#7aa2f7"),
	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
}

// Styles provides pre-configured lipgloss styles using the theme.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Row      lipgloss.Style
	Selected lipgloss.Style
	StatusOK lipgloss.Style
	StatusWn lipgloss.Style
	StatusEr lipgloss.Style
	Footer   lipgloss.Style
	Flash    lipgloss.Style
}

// NewStyles builds the style set for a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Foreground(t.TextDim).
			Bold(true),
		Row: lipgloss.NewStyle().
			Foreground(t.TextPrimary),
		Selected: lipgloss.NewStyle().
			Foreground(t.TextPrimary).
			Background(t.BgAccent).
			Bold(true),
		StatusOK: lipgloss.NewStyle().Foreground(t.Success),
		StatusWn: lipgloss.NewStyle().Foreground(t.Warning),
		StatusEr: lipgloss.NewStyle().Foreground(t.Error),
		Footer: lipgloss.NewStyle().
			Foreground(t.TextDim).
			Padding(0, 1),
		Flash: lipgloss.NewStyle().
			Foreground(t.Success).
			Padding(0, 1),
	}
}
