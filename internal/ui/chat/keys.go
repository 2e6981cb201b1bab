// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the bindings for both the tray and the chat view.
type KeyMap struct {
	// Tray
	Show key.Binding
	Quit key.Binding

	// Chat view
	Submit    key.Binding
	Hide      key.Binding
	Copy      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	ForceQuit key.Binding

	// Both
	Toggle key.Binding
}

// DefaultKeyMap returns the default bindings. Terminals deliver ctrl+space
// as ctrl+@; extra toggle keys can be added for other combos.
func DefaultKeyMap(extraToggle ...string) KeyMap {
	toggle := append([]string{"ctrl+@"}, extraToggle...)
	return KeyMap{
		Show: key.NewBinding(
			key.WithKeys("o", "enter"),
			key.WithHelp("o", "open"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "exit"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Hide: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "hide"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy reply"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "exit"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(toggle...),
			key.WithHelp("C-Space", "toggle"),
		),
	}
}

// chatHelp lists the bindings shown under the input.
func (k KeyMap) chatHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Hide, k.Copy, k.ForceQuit}
}
