// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

// State is the window's visibility.
type State int

const (
	Hidden State = iota
	Showing
	Visible
	Hiding
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Showing:
		return "showing"
	case Visible:
		return "visible"
	case Hiding:
		return "hiding"
	default:
		return "unknown"
	}
}

// destination is where a state is headed once its transition completes.
func (s State) destination() State {
	switch s {
	case Showing:
		return Visible
	case Hiding:
		return Hidden
	default:
		return s
	}
}

// Event is an input to the machine.
type Event int

const (
	ShowRequested Event = iota
	HideRequested
	Deactivated // the window lost focus
	EscapeKey
	Toggle // hotkey: show if headed hidden, hide if headed visible
)

func (e Event) String() string {
	switch e {
	case ShowRequested:
		return "show_requested"
	case HideRequested:
		return "hide_requested"
	case Deactivated:
		return "deactivated"
	case EscapeKey:
		return "escape_key"
	case Toggle:
		return "toggle"
	default:
		return "unknown"
	}
}
