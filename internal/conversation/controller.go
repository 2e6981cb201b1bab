// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jeranaias/summon/internal/config"
	"github.com/jeranaias/summon/internal/logging"
	"github.com/jeranaias/summon/internal/ollama"
)

var (
	// ErrRequestInFlight is returned by Submit while a reply is still streaming.
	ErrRequestInFlight = errors.New("a request is already in flight")
	// ErrEmptyPrompt is returned by Submit for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Sink receives reply fragments and the terminal outcome, always from the
// dispatch queue. On error the explanatory text arrives as a final token
// before OnOutcome.
type Sink interface {
	OnToken(token string)
	OnOutcome(outcome ollama.Outcome)
}

// Completer starts a completion on its own goroutine. *ollama.Client
// satisfies it.
type Completer interface {
	Submit(ctx context.Context, req ollama.CompletionRequest, onToken func(string), onOutcome func(ollama.Outcome))
}

// Poster enqueues work on the dispatch queue.
type Poster interface {
	Post(fn func()) bool
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings are the per-request parameters. They can be swapped between
// requests, e.g. after a config reload.
type Settings struct {
	Model      string
	System     string
	Options    ollama.Options
	Stream     bool
	MaxHistory int
}

// SettingsFromConfig maps the [model] table onto request settings.
func SettingsFromConfig(m config.ModelConfig) Settings {
	return Settings{
		Model:  m.Name,
		System: m.SystemPrompt,
		Options: ollama.Options{
			Temperature:   m.Temperature,
			TopP:          m.TopP,
			TopK:          m.TopK,
			NumPredict:    m.MaxTokens,
			RepeatPenalty: m.RepeatPenalty,
		},
		Stream:     m.Stream,
		MaxHistory: m.MaxHistory,
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

type inflight struct {
	id        string
	cancel    context.CancelFunc
	prompt    *Message
	reply     *Message
	discarded bool // conversation was reset underneath it
}

// Controller owns one conversation and at most one request.
type Controller struct {
	client   Completer
	poster   Poster
	sink     Sink
	logger   *slog.Logger
	settings Settings

	conv    *Conversation
	current *inflight

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller. A nil sink discards output.
func NewController(client Completer, poster Poster, sink Sink, settings Settings, logger *slog.Logger) *Controller {
	if sink == nil {
		sink = nopSink{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:   client,
		poster:   poster,
		sink:     sink,
		logger:   logging.OrDiscard(logger),
		settings: settings,
		conv:     New(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit starts a reply to prompt. It never queues: a second prompt while
// one is streaming gets ErrRequestInFlight.
func (c *Controller) Submit(prompt string) error {
	if c.current != nil {
		return ErrRequestInFlight
	}
	prompt = NormalizePrompt(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}

	history := c.conv.History(c.settings.MaxHistory)
	req := ollama.CompletionRequest{
		Prompt:  prompt,
		Model:   c.settings.Model,
		System:  c.settings.System,
		History: history,
		Options: c.settings.Options,
		Stream:  c.settings.Stream,
	}

	ctx, cancel := context.WithCancel(c.ctx)
	cur := &inflight{
		id:     uuid.NewString(),
		cancel: cancel,
		prompt: c.conv.AddUserMessage(prompt),
		reply:  c.conv.AddAssistantMessage(),
	}
	c.current = cur

	c.logger.Info("REQUEST_SUBMITTED",
		"request", cur.id,
		"conversation", c.conv.ID,
		"model", req.Model,
		"history", len(history),
		"stream", req.Stream)
	c.logger.Debug("REQUEST_PROMPT", "request", cur.id, "preview", cur.prompt.Preview(60))

	c.client.Submit(ctx, req,
		func(tok string) { c.poster.Post(func() { c.token(cur, tok) }) },
		func(o ollama.Outcome) { c.poster.Post(func() { c.finish(cur, o) }) })
	return nil
}

func (c *Controller) token(cur *inflight, tok string) {
	if c.current != cur || cur.discarded {
		return
	}
	cur.reply.AppendToken(tok)
	c.sink.OnToken(tok)
}

func (c *Controller) finish(cur *inflight, o ollama.Outcome) {
	if c.current != cur {
		c.logger.Debug("REQUEST_STALE_OUTCOME", "request", cur.id)
		return
	}
	c.current = nil
	cur.cancel()

	if !cur.discarded {
		if o.OK() {
			cur.reply.FinalizeStream(o.Stats)
		} else {
			cur.reply.Fail()
			cur.prompt.Fail()
		}
	}

	if o.Err != nil {
		c.logger.Debug("REQUEST_FINISHED", "request", cur.id, "error_type", o.Err.Type.String())
	} else {
		c.logger.Debug("REQUEST_FINISHED", "request", cur.id, "tokens", o.Stats.Tokens)
	}
	c.sink.OnOutcome(o)
}

// Cancel stops the in-flight request, if any. Its outcome still reaches the
// sink, as a cancelled RecoveredError.
func (c *Controller) Cancel() bool {
	if c.current == nil {
		return false
	}
	c.logger.Info("REQUEST_CANCELLED", "request", c.current.id)
	c.current.cancel()
	return true
}

// Reset cancels any in-flight request and clears the conversation. Tokens
// still arriving for the old request are dropped.
func (c *Controller) Reset() {
	if c.current != nil {
		c.current.discarded = true
		c.current.cancel()
	}
	old := c.conv.ID
	c.conv.Clear()
	c.logger.Info("CONVERSATION_RESET", "previous", old, "conversation", c.conv.ID)
}

// Close cancels everything and refuses further submits.
func (c *Controller) Close() {
	c.cancel()
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	return c.current != nil
}

// Conversation returns the live transcript. Read it only from the queue.
func (c *Controller) Conversation() *Conversation {
	return c.conv
}

// Settings returns the current request settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// SetSettings replaces the settings used from the next Submit on.
func (c *Controller) SetSettings(s Settings) {
	c.settings = s
}

type nopSink struct{}

func (nopSink) OnToken(string) {}
func (nopSink) OnOutcome(ollama.Outcome) {}
