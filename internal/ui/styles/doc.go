// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the palette, theme and transition timing for the
// summon terminal UI.
//
// All colors are lipgloss AdaptiveColors. A Theme binds them to one
// renderer whose background darkness is fixed by the [ui] theme setting
// ("dark", "light", or "auto" to ask the terminal).
package styles
