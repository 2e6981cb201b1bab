// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jeranaias/summon/internal/hotkey"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field found in one pass.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors if anything is off.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Model
	if strings.TrimSpace(c.Model.Name) == "" {
		add("model.name", "must not be empty")
	}
	if u, err := url.Parse(c.Model.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("model.endpoint", "invalid URL '%s', expected http(s)://host[:port]/path", c.Model.Endpoint)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		add("model.temperature", "%.2f out of range, must be between 0.0 and 2.0", c.Model.Temperature)
	}
	if c.Model.TopP < 0 || c.Model.TopP > 1 {
		add("model.top_p", "%.2f out of range, must be between 0.0 and 1.0", c.Model.TopP)
	}
	if c.Model.TopK < 0 {
		add("model.top_k", "must not be negative")
	}
	if c.Model.MaxTokens < -1 {
		add("model.max_tokens", "must be -1 (unlimited) or greater")
	}
	if c.Model.RepeatPenalty < 0 {
		add("model.repeat_penalty", "must not be negative")
	}
	if c.Model.TimeoutSecs < 1 || c.Model.TimeoutSecs > 3600 {
		add("model.timeout_secs", "%d out of range, must be between 1 and 3600", c.Model.TimeoutSecs)
	}
	if c.Model.MaxHistory < 0 {
		add("model.max_history", "must not be negative")
	}

	// Hotkey
	if _, err := hotkey.ParseCombo(c.Hotkey.Combo); err != nil {
		add("hotkey.combo", "%v", err)
	}
	switch strings.ToLower(c.Hotkey.Backend) {
	case "file", "memory":
	default:
		add("hotkey.backend", "invalid backend '%s', must be one of: file, memory", c.Hotkey.Backend)
	}
	if c.Hotkey.DebounceMs < 0 {
		add("hotkey.debounce_ms", "must not be negative")
	}

	// Session
	if c.Session.IdleResetSecs < 1 {
		add("session.idle_reset_secs", "must be at least 1")
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
