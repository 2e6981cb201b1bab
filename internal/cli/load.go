// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"log/slog"

	"github.com/jeranaias/summon/internal/config"
	"github.com/jeranaias/summon/internal/logging"
	"github.com/jeranaias/summon/internal/ollama"
)

// LoadConfig resolves the effective configuration: the --config file (or
// the process-wide one), then flag overrides. The result becomes the
// process-wide config.
func LoadConfig(args Args) (*config.Config, error) {
	var cfg *config.Config
	if args.ConfigPath != "" {
		loaded, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Global().Clone()
	}

	ApplyFlags(cfg, args)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// ApplyFlags copies command-line overrides onto cfg. The launcher reapplies
// them after every config reload.
func ApplyFlags(cfg *config.Config, args Args) {
	if args.Model != "" {
		cfg.Model.Name = args.Model
	}
	if args.Endpoint != "" {
		cfg.Model.Endpoint = args.Endpoint
	}
	if args.NoStream {
		cfg.Model.Stream = false
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
}

// openLogger opens the configured log. The closer is always non-nil.
func openLogger(cfg *config.Config) (*slog.Logger, func() error) {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return logging.Discard(), func() error { return nil }
	}
	return logger, closer
}

// newClient builds the inference client for cfg.
func newClient(cfg *config.Config, logger *slog.Logger) (*ollama.Client, error) {
	return ollama.NewClient(ollama.ClientConfig{
		Endpoint: cfg.Model.Endpoint,
		Timeout:  cfg.Model.Timeout(),
		Logger:   logger,
	})
}
