// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/summon/internal/ui/styles"
)

// palette holds the styles for plain command output.
type palette struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	OK    lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style
	Muted lipgloss.Style
	User  lipgloss.Style
	Bot   lipgloss.Style
}

// newPalette derives command styles from the UI theme, with the color
// profile forced to what ColorProfile allows.
func newPalette(themeName string) palette {
	t := styles.NewTheme(themeName)
	r := t.Renderer()
	r.SetColorProfile(ColorProfile())

	return palette{
		Title: r.NewStyle().Foreground(styles.Purple).Bold(true),
		Label: r.NewStyle().Foreground(styles.TextSecondary),
		Value: r.NewStyle().Foreground(styles.TextPrimary),
		OK:    r.NewStyle().Foreground(styles.Emerald),
		Warn:  r.NewStyle().Foreground(styles.Amber),
		Error: r.NewStyle().Foreground(styles.Rose).Bold(true),
		Muted: r.NewStyle().Foreground(styles.TextMuted),
		User:  r.NewStyle().Foreground(styles.Cyan).Bold(true),
		Bot:   r.NewStyle().Foreground(styles.Purple).Bold(true),
	}
}

// plainPalette renders everything unstyled. Tests use it.
func plainPalette() palette {
	s := lipgloss.NewStyle()
	return palette{s, s, s, s, s, s, s, s, s}
}
