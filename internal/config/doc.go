// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for summon.
//
// TOML, JSON and YAML files are supported, with defaults for every field,
// SUMMON_* environment overrides and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SUMMON_*)
//   - ~/.summon/config.toml
//   - ~/.summon/config.json
//   - ~/.summon/config.yaml
//   - Built-in defaults
//
// The directory can be moved with SUMMON_HOME.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    // cfg still holds usable defaults
//	}
//	fmt.Println(cfg.Model.Endpoint)
//
// Dot-notation access backs the `summon config get/set` commands:
//
//	v, _ := cfg.Get("model.temperature")
//	_ = cfg.Set("session.idle_reset_secs", "10")
package config
