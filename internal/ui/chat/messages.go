// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/summon/internal/ollama"
)

// =============================================================================
// MESSAGES INTO THE PROGRAM
// =============================================================================

// ShowMsg starts the reveal. Done is called once it has finished.
type ShowMsg struct{ Done func(error) }

// HideMsg starts the hide. Done is called once it has finished.
type HideMsg struct{ Done func(error) }

// TokenMsg is one reply fragment.
type TokenMsg string

// OutcomeMsg ends the current reply.
type OutcomeMsg struct{ Outcome ollama.Outcome }

// ResetMsg clears the transcript after the idle timeout.
type ResetMsg struct{}

// SubmitErrorMsg reports a prompt the controller refused.
type SubmitErrorMsg struct{ Err error }

// NoticeMsg sets the line shown next to the tray, e.g. a hotkey conflict.
type NoticeMsg string

type frameMsg struct{ seq int }

// =============================================================================
// ADAPTERS
// =============================================================================

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Window turns session transitions into program messages.
type Window struct {
	sender Sender
}

// NewWindow returns a Window bound to s.
func NewWindow(s Sender) *Window {
	return &Window{sender: s}
}

// Show asks the program to reveal the chat view.
func (w *Window) Show(done func(error)) {
	w.sender.Send(ShowMsg{Done: done})
}

// Hide asks the program to fall back to the tray line.
func (w *Window) Hide(done func(error)) {
	w.sender.Send(HideMsg{Done: done})
}

// Sink forwards controller output to the program in arrival order.
type Sink struct {
	sender Sender
}

// NewSink returns a Sink bound to s.
func NewSink(s Sender) *Sink {
	return &Sink{sender: s}
}

// OnToken forwards one fragment.
func (s *Sink) OnToken(token string) {
	s.sender.Send(TokenMsg(token))
}

// OnOutcome forwards the terminal outcome.
func (s *Sink) OnOutcome(o ollama.Outcome) {
	s.sender.Send(OutcomeMsg{Outcome: o})
}
