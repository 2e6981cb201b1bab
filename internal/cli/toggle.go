// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/jeranaias/summon/internal/config"
	"github.com/jeranaias/summon/internal/hotkey"
)

// HandleToggle presses the launcher's hotkey from the outside, through the
// file backend's trigger directory.
func HandleToggle(args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	return toggle(cfg.Hotkey, args.Combo)
}

func toggle(h config.HotkeyConfig, comboOverride string) error {
	if h.Backend != "file" {
		return fmt.Errorf("toggle needs the file hotkey backend (configured: %s)", h.Backend)
	}
	raw := h.Combo
	if comboOverride != "" {
		raw = comboOverride
	}
	combo, err := hotkey.ParseCombo(raw)
	if err != nil {
		return err
	}
	dir, err := h.TriggerDir()
	if err != nil {
		return err
	}
	return hotkey.Trigger(dir, combo)
}
