// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/summon/internal/ollama"
)

// Conversation is the in-memory transcript. It is never persisted.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []*Message
}

// New creates an empty conversation with a fresh id.
func New() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends msg.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// AddUserMessage creates and appends a user message.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := NewMessage(RoleUser, content)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage creates and appends a streaming reply.
func (c *Conversation) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.AddMessage(msg)
	return msg
}

// LastMessage returns the most recent message, or nil.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastAssistantMessage returns the most recent finished reply, or nil.
func (c *Conversation) LastAssistantMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == RoleAssistant && !m.IsStreaming && !m.Failed {
			return m
		}
	}
	return nil
}

// Clear drops every message and starts a new conversation id.
func (c *Conversation) Clear() {
	c.ID = uuid.NewString()
	c.Messages = nil
	c.UpdatedAt = time.Now()
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty reports whether there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// OLLAMA CONVERSION
// =============================================================================

// History returns up to max of the most recent completed turns in wire form,
// oldest first. Streaming, failed and empty messages are left out. max <= 0
// returns nil.
func (c *Conversation) History(max int) []ollama.Message {
	if max <= 0 {
		return nil
	}
	var out []ollama.Message
	for i := len(c.Messages) - 1; i >= 0 && len(out) < max; i-- {
		m := c.Messages[i]
		if m.IsStreaming || m.Failed || m.IsEmpty() {
			continue
		}
		out = append(out, ollama.Message{Role: string(m.Role), Content: m.Content})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
