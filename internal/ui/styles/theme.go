// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted in [ui] theme.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeAuto  = "auto"
)

// Theme holds every style the UI renders with.
type Theme struct {
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	renderer *lipgloss.Renderer

	// Tray line
	Tray       lipgloss.Style
	TrayBrand  lipgloss.Style
	TrayKey    lipgloss.Style
	TrayNotice lipgloss.Style

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// Bubbles
	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	Stats           lipgloss.Style

	// Input and status
	Input          lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusReady    lipgloss.Style
	StatusThinking lipgloss.Style
	StatusError    lipgloss.Style
	Help           lipgloss.Style
	Spinner        lipgloss.Style
}

// NewTheme builds a theme for output written to stdout.
func NewTheme(name string) *Theme {
	return NewThemeFor(os.Stdout, name)
}

// NewThemeFor builds a theme for w. "auto" (or an unknown name) queries the
// terminal background.
func NewThemeFor(w io.Writer, name string) *Theme {
	r := lipgloss.NewRenderer(w)

	var dark bool
	switch name {
	case ThemeDark:
		dark = true
	case ThemeLight:
		dark = false
	default:
		name = ThemeAuto
		dark = r.HasDarkBackground()
	}
	r.SetHasDarkBackground(dark)

	t := &Theme{
		Name:         name,
		IsDark:       dark,
		ColorProfile: r.ColorProfile(),
		renderer:     r,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	t.Tray = s().Foreground(TextSecondary)
	t.TrayBrand = s().Foreground(Purple).Bold(true)
	t.TrayKey = s().Foreground(Cyan).Bold(true)
	t.TrayNotice = s().Foreground(Amber)

	t.Header = s().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.HeaderTitle = s().Foreground(Purple).Bold(true)
	t.HeaderModel = s().Foreground(TextMuted)

	t.UserLabel = s().Foreground(Cyan).Bold(true)
	t.AssistantLabel = s().Foreground(Purple).Bold(true)
	t.UserBubble = s().
		Background(UserBubbleBg).
		Foreground(UserBubbleFg).
		Padding(0, 1)
	t.AssistantBubble = s().
		Background(AssistantBubbleBg).
		Foreground(AssistantBubbleFg).
		Padding(0, 1)
	t.ErrorBubble = s().
		Background(ErrorBubbleBg).
		Foreground(ErrorBubbleFg).
		Padding(0, 1)
	t.Stats = s().Foreground(TextMuted).Italic(true)

	t.Input = s().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.InputPrompt = s().Foreground(Purple).Bold(true)
	t.StatusReady = s().Foreground(Emerald)
	t.StatusThinking = s().Foreground(Amber)
	t.StatusError = s().Foreground(Rose).Bold(true)
	t.Help = s().Foreground(TextMuted)
	t.Spinner = s().Foreground(Purple)
}

// Renderer returns the renderer the styles are bound to.
func (t *Theme) Renderer() *lipgloss.Renderer {
	return t.renderer
}

// GlamourStyle names the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return ThemeDark
	}
	return ThemeLight
}
