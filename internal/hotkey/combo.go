// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hotkey registers the global shortcut that summons the chat window.
//
// A Registry owns every binding and hands activations to callbacks on the
// application's dispatch queue. How a combination is actually captured is
// left to a Backend: FileBackend for a resident launcher driven by the
// desktop environment, MemoryBackend for tests and in-process use.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// MODIFIERS
// =============================================================================

// Modifiers is a bitset of modifier keys.
type Modifiers uint8

const (
	ModAlt Modifiers = 1 << iota
	ModControl
	ModShift
	ModSuper
)

// modifierOrder is the canonical order used by String.
var modifierOrder = []struct {
	mod  Modifiers
	name string
}{
	{ModControl, "ctrl"},
	{ModAlt, "alt"},
	{ModShift, "shift"},
	{ModSuper, "super"},
}

var modifierAliases = map[string]Modifiers{
	"ctrl":    ModControl,
	"control": ModControl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"win":     ModSuper,
	"cmd":     ModSuper,
	"meta":    ModSuper,
}

// Has reports whether every bit of m2 is set in m.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

func (m Modifiers) String() string {
	var parts []string
	for _, mo := range modifierOrder {
		if m.Has(mo.mod) {
			parts = append(parts, mo.name)
		}
	}
	return strings.Join(parts, "+")
}

// =============================================================================
// KEYS
// =============================================================================

// Key is a canonical lower-case key name such as "space", "k" or "f12".
type Key string

const KeySpace Key = "space"

var namedKeys = map[string]Key{
	"space":     KeySpace,
	"enter":     "enter",
	"return":    "enter",
	"tab":       "tab",
	"escape":    "escape",
	"esc":       "escape",
	"backspace": "backspace",
	"delete":    "delete",
	"del":       "delete",
	"insert":    "insert",
	"home":      "home",
	"end":       "end",
	"pageup":    "pageup",
	"pgup":      "pageup",
	"pagedown":  "pagedown",
	"pgdn":      "pagedown",
	"up":        "up",
	"down":      "down",
	"left":      "left",
	"right":     "right",
}

func parseKey(s string) (Key, bool) {
	if k, ok := namedKeys[s]; ok {
		return k, true
	}
	if len(s) == 1 {
		c := s[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return Key(s), true
		}
	}
	if len(s) >= 2 && s[0] == 'f' {
		n := 0
		for _, c := range s[1:] {
			if c < '0' || c > '9' {
				return "", false
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 24 && s[1] != '0' {
			return Key(s), true
		}
	}
	return "", false
}

// =============================================================================
// COMBO
// =============================================================================

// Combo is a modifier set plus one key.
type Combo struct {
	Mods Modifiers
	Key  Key
}

// DefaultCombo is Control+Space.
var DefaultCombo = Combo{Mods: ModControl, Key: KeySpace}

// ErrInvalidCombo wraps every ParseCombo failure.
var ErrInvalidCombo = errors.New("invalid key combination")

// ParseCombo parses "ctrl+space", "Alt+Shift+K", "super+f12" and similar.
// Modifier aliases (control, option, cmd, win, meta) are accepted.
func ParseCombo(s string) (Combo, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Combo{}, fmt.Errorf("%w: empty", ErrInvalidCombo)
	}

	var c Combo
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Combo{}, fmt.Errorf("%w: %q has an empty component", ErrInvalidCombo, s)
		}
		if mod, ok := modifierAliases[part]; ok {
			c.Mods |= mod
			continue
		}
		key, ok := parseKey(part)
		if !ok {
			return Combo{}, fmt.Errorf("%w: unknown key %q", ErrInvalidCombo, part)
		}
		if c.Key != "" {
			return Combo{}, fmt.Errorf("%w: %q names more than one key", ErrInvalidCombo, s)
		}
		c.Key = key
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("%w: %q has no key", ErrInvalidCombo, s)
	}
	return c, nil
}

// MustParseCombo is ParseCombo for literals known to be valid.
func MustParseCombo(s string) Combo {
	c, err := ParseCombo(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the canonical form, e.g. "ctrl+alt+k". It doubles as the
// trigger file name used by FileBackend.
func (c Combo) String() string {
	if c.Mods == 0 {
		return string(c.Key)
	}
	return c.Mods.String() + "+" + string(c.Key)
}

// Display renders the combo for people, e.g. "Ctrl+Space".
func (c Combo) Display() string {
	parts := strings.Split(c.String(), "+")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "+")
}
