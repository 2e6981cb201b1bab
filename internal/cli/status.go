// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/summon/internal/config"
	"github.com/jeranaias/summon/internal/hotkey"
	"github.com/jeranaias/summon/internal/ollama"
	"github.com/jeranaias/summon/internal/util"
)

// =============================================================================
// STATUS COMMAND
// =============================================================================

// statusChecker is the part of the client status needs.
type statusChecker interface {
	Endpoint() string
	CheckRunning(ctx context.Context) error
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// HandleStatus prints server, model, config and hotkey status.
func HandleStatus(ctx context.Context, args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	logger, closeLog := openLogger(cfg)
	defer closeLog()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	configPath := args.ConfigPath
	if configPath == "" {
		configPath, _ = config.ExistingPath()
	}
	return showStatus(ctx, os.Stdout, newPalette(cfg.UI.Theme), cfg, configPath, client)
}

func showStatus(ctx context.Context, w io.Writer, pal palette, cfg *config.Config, configPath string, client statusChecker) error {
	row := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", pal.Label.Render(fmt.Sprintf("%-10s", label+":")), value)
	}

	fmt.Fprintln(w, pal.Title.Render("Summon Status"))
	fmt.Fprintln(w)

	if configPath == "" {
		configPath = "(built-in defaults)"
	}
	row("Config", pal.Value.Render(configPath))
	row("Endpoint", pal.Value.Render(client.Endpoint()))

	// Server
	if err := client.CheckRunning(ctx); err != nil {
		row("Server", pal.Error.Render("not reachable")+" "+pal.Muted.Render(err.Error()))
	} else {
		row("Server", pal.OK.Render("running"))
	}

	// Models
	models, err := client.ListModels(ctx)
	switch {
	case err != nil:
		row("Model", pal.Value.Render(cfg.Model.Name)+" "+pal.Muted.Render("(could not list models)"))
	case ollama.HasModel(models, cfg.Model.Name):
		row("Model", pal.Value.Render(cfg.Model.Name)+" "+pal.OK.Render("installed"))
	default:
		row("Model", pal.Value.Render(cfg.Model.Name)+" "+pal.Warn.Render("not installed")+
			" "+pal.Muted.Render("(ollama pull "+cfg.Model.Name+")"))
	}

	// Hotkey
	row("Hotkey", hotkeyStatus(pal, cfg.Hotkey))

	if len(models) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, pal.Title.Render("Installed Models"))
		nameWidth := 0
		for _, m := range models {
			nameWidth = max(nameWidth, runewidth.StringWidth(m.Name))
		}
		for _, m := range models {
			detail := m.FormatSize()
			if m.Details.ParameterSize != "" {
				detail = m.Details.ParameterSize + ", " + detail
			}
			fmt.Fprintf(w, "  %s %s\n", pal.Value.Render(util.PadWidth(m.Name, nameWidth)), pal.Muted.Render("("+detail+")"))
		}
	}
	return nil
}

func hotkeyStatus(pal palette, h config.HotkeyConfig) string {
	combo, err := hotkey.ParseCombo(h.Combo)
	if err != nil {
		return pal.Error.Render("invalid combo " + h.Combo)
	}
	label := pal.Value.Render(combo.Display())
	if h.Backend != "file" {
		return label + " " + pal.Muted.Render("("+h.Backend+" backend)")
	}
	dir, err := h.TriggerDir()
	if err != nil {
		return label
	}
	if pid, ok := hotkey.Owner(dir, combo); ok {
		return label + " " + pal.OK.Render(fmt.Sprintf("held by launcher (pid %d)", pid))
	}
	return label + " " + pal.Muted.Render("(no launcher running)")
}
