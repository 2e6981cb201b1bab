// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/summon/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the root configuration for summon.
type Config struct {
	Model   ModelConfig   `toml:"model" json:"model" yaml:"model"`
	Hotkey  HotkeyConfig  `toml:"hotkey" json:"hotkey" yaml:"hotkey"`
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
	Log     LogConfig     `toml:"log" json:"log" yaml:"log"`
}

// ModelConfig describes the inference endpoint and sampling parameters.
type ModelConfig struct {
	Name          string  `toml:"name" json:"name" yaml:"name"`
	Endpoint      string  `toml:"endpoint" json:"endpoint" yaml:"endpoint"`
	Temperature   float64 `toml:"temperature" json:"temperature" yaml:"temperature"`
	TopP          float64 `toml:"top_p" json:"top_p" yaml:"top_p"`
	TopK          int     `toml:"top_k" json:"top_k" yaml:"top_k"`
	MaxTokens     int     `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	RepeatPenalty float64 `toml:"repeat_penalty" json:"repeat_penalty" yaml:"repeat_penalty"`
	Stream        bool    `toml:"stream" json:"stream" yaml:"stream"`
	TimeoutSecs   int     `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	SystemPrompt  string  `toml:"system_prompt" json:"system_prompt" yaml:"system_prompt"`
	// MaxHistory caps the prior messages sent with each request (0 = none).
	MaxHistory int `toml:"max_history" json:"max_history" yaml:"max_history"`
}

// HotkeyConfig controls the global shortcut.
type HotkeyConfig struct {
	Combo      string `toml:"combo" json:"combo" yaml:"combo"`
	Backend    string `toml:"backend" json:"backend" yaml:"backend"` // "file" or "memory"
	Dir        string `toml:"dir" json:"dir" yaml:"dir"`
	DebounceMs int    `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// SessionConfig controls the show/hide lifecycle.
type SessionConfig struct {
	IdleResetSecs int  `toml:"idle_reset_secs" json:"idle_reset_secs" yaml:"idle_reset_secs"`
	CancelOnHide  bool `toml:"cancel_on_hide" json:"cancel_on_hide" yaml:"cancel_on_hide"`
}

// UIConfig controls presentation.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme" yaml:"theme"` // dark, light, auto
	Markdown bool   `toml:"markdown" json:"markdown" yaml:"markdown"`
}

// LogConfig controls the slog logger.
type LogConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
	Output string `toml:"output" json:"output" yaml:"output"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultModel        = "smollm2:135m-instruct-q8_0"
	DefaultEndpoint     = "http://127.0.0.1:11434/api/chat"
	DefaultCombo        = "ctrl+space"
	DefaultSystemPrompt = "You are Summon, a quick desktop assistant. " +
		"Answer briefly and warmly, in plain language. " +
		"Prefer a sentence or two unless the user asks for more detail."
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:          DefaultModel,
			Endpoint:      DefaultEndpoint,
			Temperature:   0.3,
			TopP:          0.8,
			TopK:          20,
			MaxTokens:     300,
			RepeatPenalty: 1.1,
			Stream:        true,
			TimeoutSecs:   30,
			SystemPrompt:  DefaultSystemPrompt,
			MaxHistory:    20,
		},
		Hotkey: HotkeyConfig{
			Combo:      DefaultCombo,
			Backend:    "file",
			DebounceMs: 150,
		},
		Session: SessionConfig{
			IdleResetSecs: 5,
			CancelOnHide:  true,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults fills fields whose zero value is never meaningful.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Model.Name == "" {
		c.Model.Name = d.Model.Name
	}
	if c.Model.Endpoint == "" {
		c.Model.Endpoint = d.Model.Endpoint
	}
	if c.Model.TimeoutSecs == 0 {
		c.Model.TimeoutSecs = d.Model.TimeoutSecs
	}
	if c.Hotkey.Combo == "" {
		c.Hotkey.Combo = d.Hotkey.Combo
	}
	if c.Hotkey.Backend == "" {
		c.Hotkey.Backend = d.Hotkey.Backend
	}
	if c.Session.IdleResetSecs == 0 {
		c.Session.IdleResetSecs = d.Session.IdleResetSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Timeout is the whole-request budget for one completion.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSecs) * time.Second
}

// IdleDelay is how long the window stays hidden before the conversation resets.
func (s SessionConfig) IdleDelay() time.Duration {
	return time.Duration(s.IdleResetSecs) * time.Second
}

// Debounce is the minimum spacing between two activations of the hotkey.
func (h HotkeyConfig) Debounce() time.Duration {
	return time.Duration(h.DebounceMs) * time.Millisecond
}

// TriggerDir returns the directory watched by the file hotkey backend.
func (h HotkeyConfig) TriggerDir() (string, error) {
	if h.Dir != "" {
		return util.ExpandHome(h.Dir), nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hotkeys"), nil
}

// LogPath returns where the resident launcher writes its log.
func (l LogConfig) LogPath() (string, error) {
	if l.Output != "" {
		return util.ExpandHome(l.Output), nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "summon.log"), nil
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// Dir returns the summon configuration directory (SUMMON_HOME or ~/.summon).
func Dir() (string, error) {
	if dir := os.Getenv("SUMMON_HOME"); dir != "" {
		return util.ExpandHome(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".summon"), nil
}

// EnsureDir creates the configuration directory if needed.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// candidateFiles lists config file names in lookup order.
var candidateFiles = []string{"config.toml", "config.json", "config.yaml", "config.yml"}

// DefaultPath returns the TOML config path, the one `config set` writes.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, candidateFiles[0]), nil
}

// ExistingPath returns the first config file present on disk, or "" if none.
func ExistingPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	for _, name := range candidateFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}
