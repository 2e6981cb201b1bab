// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SUMMON_MODEL: overrides model.name
//   - SUMMON_ENDPOINT: overrides model.endpoint
//   - SUMMON_STREAM: "0"/"false" disables streaming
//   - SUMMON_HOTKEY: overrides hotkey.combo
//   - SUMMON_IDLE_RESET: overrides session.idle_reset_secs
//   - SUMMON_LOG_LEVEL: overrides log.level
//
// A value that cannot be parsed leaves the field alone and is reported in
// the returned errors.
func (c *Config) ApplyEnvOverrides() ValidateErrors {
	var errs ValidateErrors
	if v := os.Getenv("SUMMON_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("SUMMON_ENDPOINT"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("SUMMON_STREAM"); v != "" {
		c.Model.Stream = parseBool(v)
	}
	if v := os.Getenv("SUMMON_HOTKEY"); v != "" {
		c.Hotkey.Combo = v
	}
	if v := os.Getenv("SUMMON_IDLE_RESET"); v != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "session.idle_reset_secs",
				Message: fmt.Sprintf("SUMMON_IDLE_RESET=%q is not a whole number of seconds", v),
			})
		} else {
			c.Session.IdleResetSecs = secs
		}
	}
	if v := os.Getenv("SUMMON_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return errs
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
