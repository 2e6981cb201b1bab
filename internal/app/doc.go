// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app assembles the resident launcher: the dispatch queue, the
// visibility state machine, the conversation controller, the global hotkey
// and the terminal program that renders the tray line and chat window.
//
// Everything that mutates launcher state runs on the dispatch queue. The
// terminal program only posts to the queue; queue code talks back to the
// program through its Send method.
package app
