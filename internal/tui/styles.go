package tui

import (
	"github.com/CZERTAINLY/cliform/internal/model"

	"github.com/charmbracelet/lipgloss"
)

type palette struct {
	accent    lipgloss.Color
	secondary lipgloss.Color
	muted     lipgloss.Color
	warning   lipgloss.Color
	border    lipgloss.Color
}

var (
	darkPalette = palette{
		accent:    lipgloss.Color("#50E3C2"),
		secondary: lipgloss.Color("#F6AE2D"),
		muted:     lipgloss.Color("#8CA1AE"),
		warning:   lipgloss.Color("#FF6B6B"),
		border:    lipgloss.Color("#2D6A80"),
	}
	lightPalette = palette{
		accent:    lipgloss.Color("#00736B"),
		secondary: lipgloss.Color("#B35C00"),
		muted:     lipgloss.Color("#5C6B73"),
		warning:   lipgloss.Color("#C62828"),
		border:    lipgloss.Color("#7FA7B5"),
	}
)

// Styles are the lipgloss styles used by View. A setup hook may replace any
// of them.
type Styles struct {
	Title       lipgloss.Style
	Version     lipgloss.Style
	About       lipgloss.Style
	Info        lipgloss.Style
	Header      lipgloss.Style
	Label       lipgloss.Style
	Focused     lipgloss.Style
	Description lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Separator   lipgloss.Style
	Output      lipgloss.Style
}

// NewStyles returns the styles of a theme, see model.Theme*. Unknown themes
// are plain.
func NewStyles(theme string) Styles {
	var p palette
	switch theme {
	case model.ThemeDark:
		p = darkPalette
	case model.ThemeLight:
		p = lightPalette
	default:
		return plainStyles()
	}

	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.accent),
		Version: lipgloss.NewStyle().
			Foreground(p.muted),
		About:       lipgloss.NewStyle(),
		Info:        lipgloss.NewStyle().Foreground(p.muted).PaddingLeft(2),
		Header:      lipgloss.NewStyle().Bold(true).Underline(true),
		Label:       lipgloss.NewStyle(),
		Focused:     lipgloss.NewStyle().Bold(true).Foreground(p.secondary),
		Description: lipgloss.NewStyle().Foreground(p.muted),
		Status: lipgloss.NewStyle().
			Foreground(p.secondary).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(p.warning).
			Bold(true),
		Separator: lipgloss.NewStyle().Foreground(p.border),
		Output:    lipgloss.NewStyle(),
	}
}

func plainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{
		Title:       s.Bold(true),
		Version:     s,
		About:       s,
		Info:        s.PaddingLeft(2),
		Header:      s.Bold(true),
		Label:       s,
		Focused:     s.Bold(true),
		Description: s,
		Status:      s,
		Error:       s.Bold(true),
		Separator:   s,
		Output:      s,
	}
}
