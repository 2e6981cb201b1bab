// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"fmt"
	"time"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// Role names used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn as sent to /api/chat.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling parameters sent with every request. They are
// always serialized, including zero values, so the server never silently
// substitutes its own defaults.
type Options struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	NumPredict    int     `json:"num_predict"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

// chatRequest is the body for /api/chat.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  Options   `json:"options"`
}

// generateRequest is the body for /api/generate.
type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	System  string  `json:"system,omitempty"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

// streamRecord is one NDJSON line. Every field is optional; a line that does
// not decode into this shape is dropped.
type streamRecord struct {
	Model   string `json:"model"`
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Response        *string `json:"response"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	Error           string  `json:"error"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	EvalDuration    int64   `json:"eval_duration"`
	TotalDuration   int64   `json:"total_duration"`
}

// fragment returns the incremental text: message.content for chat,
// response for generate.
func (r *streamRecord) fragment() string {
	if r.Message != nil && r.Message.Content != "" {
		return r.Message.Content
	}
	if r.Response != nil {
		return *r.Response
	}
	return ""
}

// apiError is the body Ollama sends with a failing status.
type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo describes one installed model.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails carries the model family and quantization.
type ModelDetails struct {
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

type listModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// FormatSize renders the model size in human-readable form.
func (m ModelInfo) FormatSize() string {
	const unit = 1024
	if m.Size < unit {
		return fmt.Sprintf("%d B", m.Size)
	}
	div, exp := int64(unit), 0
	for n := m.Size / unit; n >= unit && exp < 3; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(m.Size)/float64(div), "KMGT"[exp])
}
