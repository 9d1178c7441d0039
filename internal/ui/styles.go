package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type palette struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Match, Red, Comment        lipgloss.Color
}

// Tokyo Night
var darkPalette = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Match:   lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#565f89"),
}

// Tokyo Night Light
var lightPalette = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Match:   lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#9699a3"),
}

// styles is one rendered style set; swapped whole on theme change.
type styles struct {
	theme    Theme
	header   lipgloss.Style
	box      lipgloss.Style
	overlay  lipgloss.Style
	item     lipgloss.Style
	selected lipgloss.Style
	url      lipgloss.Style
	match    lipgloss.Style
	count    lipgloss.Style
	hint     lipgloss.Style
	err      lipgloss.Style
}

func newStyles(theme Theme) styles {
	p := darkPalette
	if theme == ThemeLight {
		p = lightPalette
	} else {
		theme = ThemeDark
	}
	return styles{
		theme:  theme,
		header: lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Accent).
			Padding(0, 1),
		overlay: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(1, 2),
		item:     lipgloss.NewStyle().Foreground(p.Text),
		selected: lipgloss.NewStyle().Foreground(p.Bg).Background(p.Accent).Bold(true),
		url:      lipgloss.NewStyle().Foreground(p.TextDim),
		match:    lipgloss.NewStyle().Foreground(p.Match).Bold(true),
		count:    lipgloss.NewStyle().Foreground(p.TextDim),
		hint:     lipgloss.NewStyle().Foreground(p.Comment),
		err:      lipgloss.NewStyle().Foreground(p.Red),
	}
}

var (
	themeMu sync.RWMutex
	current = newStyles(ThemeDark)
)

// InitTheme sets the active palette: "light" or anything else for dark.
// "system" must be resolved by the caller.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	current = newStyles(Theme(theme))
}

// CurrentTheme returns the active theme.
func CurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return current.theme
}

func activeStyles() styles {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return current
}
