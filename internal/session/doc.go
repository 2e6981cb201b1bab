// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session governs the chat window's visibility and the idle reset.
//
// # States
//
//	Hidden --show--> Showing --done--> Visible --hide--> Hiding --done--> Hidden
//
// Entering Hidden arms an idle timer. If the window stays hidden until it
// fires, listeners registered with OnReset are told to clear the
// conversation. Any show request disarms the timer before the window is
// touched, and a timer fire already sitting in the dispatch queue is
// recognized as stale by its generation and ignored.
//
// Only one transition runs at a time. Asking for the destination already
// in progress is a no-op. Asking for the opposite one is remembered in a
// single slot, where the latest request wins, and started once the current
// transition completes.
//
// Every Machine method except Dispatch must run on the dispatch queue.
package session
