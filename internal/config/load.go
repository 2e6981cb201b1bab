// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/summon/internal/util"
)

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the first config file found in Dir(), then applies environment
// overrides, defaults and validation.
//
// When no file exists the defaults are returned. When a file exists but
// cannot be decoded, the defaults are still returned alongside the error so
// the caller can warn and carry on.
func Load() (*Config, error) {
	path, err := ExistingPath()
	if err != nil {
		return finish(Default())
	}
	if path == "" {
		return finish(Default())
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		fallback, ferr := finish(Default())
		if ferr != nil {
			return fallback, ferr
		}
		return fallback, err
	}
	return cfg, nil
}

// LoadFromPath loads one file, choosing the decoder by extension (.json,
// .yaml/.yml, otherwise TOML). Keys missing from the file keep their default.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	errs := cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		var verrs ValidateErrors
		if !errors.As(err, &verrs) {
			return cfg, fmt.Errorf("invalid config: %w", err)
		}
		errs = append(errs, verrs...)
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid config: %w", errs)
	}
	return cfg, nil
}

func decodeFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	switch formatOf(path) {
	case "json":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case "yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	}
	return nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// ensureSecurePermissions tightens a config file to owner read/write.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const tomlHeader = "# summon configuration file\n" +
	"# Generated by `summon config set`. Edit freely; unknown keys are rejected.\n\n"

// Save writes cfg to path atomically with 0600 permissions. The format
// follows the extension, as in LoadFromPath.
func Save(cfg *Config, path string) error {
	data, err := Encode(cfg, formatOf(path))
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders cfg as "toml", "json" or "yaml".
func Encode(cfg *Config, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
	case "toml", "":
		buf.WriteString(tomlHeader)
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
	return buf.Bytes(), nil
}
