// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle lets editors finish a write-rename sequence before we read.
const reloadSettle = 100 * time.Millisecond

// Watch reloads path whenever it changes and hands each valid result to fn.
// Invalid files are logged and skipped. The parent directory is watched so
// editors that replace the file by rename are picked up. Watch blocks until
// ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func(*Config)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("CONFIG_WATCH", "path", abs)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				settle = time.After(reloadSettle)
			}

		case <-settle:
			settle = nil
			cfg, err := LoadFromPath(abs)
			if err != nil {
				logger.Warn("CONFIG_RELOAD_FAILED", "path", abs, "error", err)
				continue
			}
			logger.Info("CONFIG_RELOADED", "path", abs)
			fn(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("CONFIG_WATCH_ERROR", "error", err)
		}
	}
}
