// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !unix && !windows

package hotkey

// processAlive cannot probe here, so every recorded owner is assumed alive.
func processAlive(pid int) bool {
	return pid > 0
}
