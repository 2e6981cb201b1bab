// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points SUMMON_HOME at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SUMMON_HOME", dir)
	for _, k := range []string{"SUMMON_MODEL", "SUMMON_ENDPOINT", "SUMMON_STREAM", "SUMMON_HOTKEY", "SUMMON_IDLE_RESET", "SUMMON_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return dir
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault_MatchesDocumentedValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "smollm2:135m-instruct-q8_0", cfg.Model.Name)
	assert.Equal(t, "http://127.0.0.1:11434/api/chat", cfg.Model.Endpoint)
	assert.Equal(t, 0.3, cfg.Model.Temperature)
	assert.Equal(t, 0.8, cfg.Model.TopP)
	assert.Equal(t, 20, cfg.Model.TopK)
	assert.Equal(t, 300, cfg.Model.MaxTokens)
	assert.Equal(t, 1.1, cfg.Model.RepeatPenalty)
	assert.True(t, cfg.Model.Stream)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout())
	assert.Equal(t, "ctrl+space", cfg.Hotkey.Combo)
	assert.Equal(t, 5*time.Second, cfg.Session.IdleDelay())
	assert.True(t, cfg.Session.CancelOnHide)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// =============================================================================
// FILE FORMATS
// =============================================================================

func TestLoad_TOMLKeepsUnsetDefaults(t *testing.T) {
	dir := isolate(t)
	content := `
[model]
name = "llama3.2:1b"
stream = false

[session]
idle_reset_secs = 12
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3.2:1b", cfg.Model.Name)
	assert.False(t, cfg.Model.Stream)
	assert.Equal(t, 12, cfg.Session.IdleResetSecs)
	assert.Equal(t, 0.3, cfg.Model.Temperature, "unset keys keep defaults")
	assert.Equal(t, "ctrl+space", cfg.Hotkey.Combo)
}

func TestLoad_UnknownTOMLKeyFallsBackWithError(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[model]\nnmae = \"x\"\n"), 0600))

	cfg, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.nmae")
	require.NotNil(t, cfg, "defaults are still returned")
	assert.Equal(t, DefaultModel, cfg.Model.Name)
}

func TestLoadFromPath_JSONAndYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"model":{"top_k":7},"ui":{"theme":"light"}}`), 0600))
	cfg, err := LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Model.TopK)
	assert.Equal(t, "light", cfg.UI.Theme)

	yamlPath := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("hotkey:\n  combo: alt+shift+k\nlog:\n  format: json\n"), 0600))
	cfg, err = LoadFromPath(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "alt+shift+k", cfg.Hotkey.Combo)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Model.TopK)
}

func TestSave_RoundTripsEveryFormat(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	want := Default()
	want.Model.Name = "qwen2.5:0.5b"
	want.Model.Temperature = 0.9
	want.Session.CancelOnHide = false

	for _, name := range []string{"c.toml", "c.json", "c.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(want, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			if os.PathSeparator == '/' {
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
			}

			got, err := LoadFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Model.Endpoint = "localhost:11434"
	cfg.Model.Temperature = 3
	cfg.Hotkey.Combo = "ctrl+"
	cfg.Hotkey.Backend = "x11"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{
		"model.endpoint", "model.temperature", "hotkey.combo", "hotkey.backend", "log.level",
	}, fields)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SUMMON_MODEL", "phi3")
	t.Setenv("SUMMON_ENDPOINT", "http://10.0.0.2:11434/api/generate")
	t.Setenv("SUMMON_STREAM", "false")
	t.Setenv("SUMMON_HOTKEY", "super+f12")
	t.Setenv("SUMMON_IDLE_RESET", "9")
	t.Setenv("SUMMON_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "phi3", cfg.Model.Name)
	assert.Equal(t, "http://10.0.0.2:11434/api/generate", cfg.Model.Endpoint)
	assert.False(t, cfg.Model.Stream)
	assert.Equal(t, "super+f12", cfg.Hotkey.Combo)
	assert.Equal(t, 9, cfg.Session.IdleResetSecs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnvOverrides_BadIdleReset(t *testing.T) {
	isolate(t)
	t.Setenv("SUMMON_IDLE_RESET", "soon")

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Session.IdleResetSecs, cfg.Session.IdleResetSecs)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "session.idle_reset_secs", verrs[0].Field)
	assert.Contains(t, verrs[0].Message, "SUMMON_IDLE_RESET")
}

// =============================================================================
// DOT NOTATION
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("model.top_p")
	require.NoError(t, err)
	assert.Equal(t, 0.8, v)

	require.NoError(t, cfg.Set("model.top_p", "0.5"))
	require.NoError(t, cfg.Set("session.idle-reset-secs", "30"))
	require.NoError(t, cfg.Set("model.stream", "off"))
	require.NoError(t, cfg.Set("hotkey.debounce_ms", 10))
	assert.Equal(t, 0.5, cfg.Model.TopP)
	assert.Equal(t, 30, cfg.Session.IdleResetSecs)
	assert.False(t, cfg.Model.Stream)
	assert.Equal(t, 10, cfg.Hotkey.DebounceMs)

	assert.Error(t, cfg.Set("model.top_k", "many"))
	assert.Error(t, cfg.Set("model", "x"))
	_, err = cfg.Get("model.nope")
	assert.Error(t, err)
	_, err = cfg.Get("model.name.inner")
	assert.Error(t, err)
}

func TestKeys_CoverEveryLeaf(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "model.repeat_penalty")
	assert.Contains(t, keys, "session.cancel_on_hide")
	assert.Contains(t, keys, "log.output")
	assert.NotContains(t, keys, "model")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

// =============================================================================
// GLOBAL
// =============================================================================

func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, Save(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) { got <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := Default()
	updated.Session.IdleResetSecs = 42
	require.NoError(t, Save(updated, path))

	select {
	case c := <-got:
		assert.Equal(t, 42, c.Session.IdleResetSecs)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	require.NoError(t, <-done)
}
