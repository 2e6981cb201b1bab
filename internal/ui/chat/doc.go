// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the terminal face of the launcher: a one-line tray while
// hidden and a full-screen chat view while visible.
//
// The model never decides visibility itself. Keys and focus loss become
// session events handed to Actions.Dispatch, and the session machine answers
// through Window with ShowMsg and HideMsg. Replies arrive through Sink.
//
//	p := tea.NewProgram(chat.New(opts), tea.WithAltScreen(), tea.WithReportFocus())
//	window := chat.NewWindow(p)
//	sink := chat.NewSink(p)
package chat
