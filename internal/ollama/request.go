// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

// CompletionRequest is one prompt plus everything needed to answer it.
// Stream copies it on entry, so the caller may reuse its slices afterwards.
type CompletionRequest struct {
	Prompt  string
	Model   string
	System  string
	History []Message // prior turns, oldest first; ignored by /api/generate
	Options Options
	Stream  bool
}

func (r CompletionRequest) clone() CompletionRequest {
	if r.History != nil {
		h := make([]Message, len(r.History))
		copy(h, r.History)
		r.History = h
	}
	return r
}

// OutcomeKind says how a request ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeRecoveredError
)

func (k OutcomeKind) String() string {
	if k == OutcomeCompleted {
		return "completed"
	}
	return "recovered_error"
}

// Outcome is the single terminal report for a request.
type Outcome struct {
	Kind OutcomeKind
	// Message is the explanation shown to the user; empty on success.
	Message string
	// Err is nil on success.
	Err   *ClientError
	Stats StreamStats
}

// OK reports a normal completion.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeCompleted
}
