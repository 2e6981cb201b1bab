// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/summon/internal/ollama"
	"github.com/jeranaias/summon/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role is the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DisplayName returns the label shown above a bubble.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Summon"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one turn in a conversation.
type Message struct {
	ID        string
	Role      Role
	Timestamp time.Time
	Content   string

	// Streaming state
	IsStreaming   bool
	streamContent strings.Builder

	// Failed marks a turn that ended in an error or was interrupted. Failed
	// turns stay on screen but are never sent back to the model.
	Failed bool

	// Performance metrics (assistant messages)
	TTFT          time.Duration
	TotalDuration time.Duration
	TokenCount    int
	TokensPerSec  float64
}

// NewMessage creates a finished message.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an empty reply that tokens stream into.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// AppendToken appends to a streaming message.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// FinalizeStream completes streaming and records the stream statistics.
func (m *Message) FinalizeStream(stats ollama.StreamStats) {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false

	m.TTFT = stats.FirstToken
	m.TotalDuration = stats.Elapsed()
	m.TokenCount = stats.CompletionTokens
	m.TokensPerSec = stats.TokensPerSecond()
}

// Fail ends streaming and excludes the message from future history.
func (m *Message) Fail() {
	if m.IsStreaming {
		m.Content = m.streamContent.String()
		m.streamContent.Reset()
		m.IsStreaming = false
	}
	m.Failed = true
}

// DisplayContent returns the streamed-so-far or final text.
func (m *Message) DisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// Preview returns a one-line, rune-safe excerpt.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.FirstLine(m.DisplayContent()), maxLen)
}

// IsEmpty reports whether the message has no text.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// FormatStats returns "2.5s | 128 tokens | 51 tok/s | TTFT 234ms" for a
// finished reply, or "".
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.IsStreaming || m.TotalDuration == 0 {
		return ""
	}
	parts := []string{fmt.Sprintf("%.1fs", m.TotalDuration.Seconds())}
	if m.TokenCount > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", m.TokenCount))
	}
	if m.TokensPerSec > 0 {
		parts = append(parts, fmt.Sprintf("%.0f tok/s", m.TokensPerSec))
	}
	if m.TTFT > 0 {
		parts = append(parts, fmt.Sprintf("TTFT %dms", m.TTFT.Milliseconds()))
	}
	return strings.Join(parts, " | ")
}

// NormalizePrompt trims surrounding whitespace and converts to NFC so that
// visually identical prompts encode identically on the wire.
func NormalizePrompt(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
