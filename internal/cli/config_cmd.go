// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/summon/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

// HandleConfig runs `summon config <sub>`.
func HandleConfig(args Args) error {
	return runConfig(args, os.Stdout)
}

func runConfig(args Args, w io.Writer) error {
	switch args.Subcommand {
	case "show", "list":
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		fmt.Fprint(w, cfg.String())

	case "get":
		if args.ConfigKey == "" {
			return usageError("config get requires a KEY")
		}
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		v, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, v)

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return usageError("config set requires KEY and VALUE")
		}
		path, err := configFilePath(args)
		if err != nil {
			return err
		}
		if err := setConfigValue(path, args.ConfigKey, args.ConfigVal); err != nil {
			return err
		}
		fmt.Fprintf(w, "Set %s = %s (%s)\n", args.ConfigKey, args.ConfigVal, path)

	case "keys":
		fmt.Fprintln(w, strings.Join(config.Keys(), "\n"))

	case "path":
		path, err := configFilePath(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, path)

	default:
		return usageError("unknown config subcommand %q", args.Subcommand)
	}
	return nil
}

// configFilePath is the file `config set` writes: --config, else the
// existing config file, else the default TOML path.
func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	path, err := config.ExistingPath()
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// setConfigValue updates one key in the file at path, creating it from the
// defaults if needed. The result must validate before it is written.
func setConfigValue(path, key, value string) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(cfg, path)
}
