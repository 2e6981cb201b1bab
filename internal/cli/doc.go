// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the summon command line: argument parsing and the
// handlers for every subcommand except the resident launcher itself, which
// lives in internal/app.
//
// Commands:
//
//	summon [run]               Start the launcher (tray line + hotkey)
//	summon toggle              Show or hide a running launcher
//	summon ask "question"      One-shot completion to stdout
//	summon chat                Line-oriented chat with history
//	summon status              Server, model and hotkey status
//	summon config <sub>        show | get KEY | set KEY VALUE | path
//	summon version | help
package cli
