// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/summon/internal/config"
	"github.com/jeranaias/summon/internal/dispatch"
	"github.com/jeranaias/summon/internal/ollama"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type call struct {
	ctx       context.Context
	req       ollama.CompletionRequest
	onToken   func(string)
	onOutcome func(ollama.Outcome)
}

type fakeCompleter struct {
	calls []*call
}

func (f *fakeCompleter) Submit(ctx context.Context, req ollama.CompletionRequest, onToken func(string), onOutcome func(ollama.Outcome)) {
	f.calls = append(f.calls, &call{ctx: ctx, req: req, onToken: onToken, onOutcome: onOutcome})
}

func (f *fakeCompleter) last() *call { return f.calls[len(f.calls)-1] }

type recordingSink struct {
	tokens   []string
	outcomes []ollama.Outcome
}

func (s *recordingSink) OnToken(tok string)         { s.tokens = append(s.tokens, tok) }
func (s *recordingSink) OnOutcome(o ollama.Outcome) { s.outcomes = append(s.outcomes, o) }

func testSettings() Settings {
	return Settings{Model: "m", System: "be brief", Stream: true, MaxHistory: 10}
}

func newTestController() (*Controller, *fakeCompleter, *dispatch.Manual, *recordingSink) {
	client := &fakeCompleter{}
	q := &dispatch.Manual{}
	sink := &recordingSink{}
	return NewController(client, q, sink, testSettings(), nil), client, q, sink
}

func completed() ollama.Outcome {
	return ollama.Outcome{Kind: ollama.OutcomeCompleted, Stats: ollama.StreamStats{CompletionTokens: 2}}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNormalizePrompt(t *testing.T) {
	assert.Equal(t, "caf\u00e9", NormalizePrompt("  cafe\u0301\n"))
	assert.Equal(t, "", NormalizePrompt(" \t\n"))
}

func TestMessage_Streaming(t *testing.T) {
	m := NewAssistantMessage()
	assert.True(t, m.IsEmpty())

	m.AppendToken("Hel")
	m.AppendToken("lo")
	assert.Equal(t, "Hello", m.DisplayContent())
	assert.Empty(t, m.Content)

	m.FinalizeStream(ollama.StreamStats{CompletionTokens: 2, EvalDuration: time.Second})
	assert.False(t, m.IsStreaming)
	assert.Equal(t, "Hello", m.Content)
	assert.Equal(t, 2, m.TokenCount)
	assert.InDelta(t, 2.0, m.TokensPerSec, 0.001)

	m.AppendToken("ignored")
	assert.Equal(t, "Hello", m.DisplayContent())
}

func TestMessage_Fail(t *testing.T) {
	m := NewAssistantMessage()
	m.AppendToken("partial")
	m.Fail()
	assert.True(t, m.Failed)
	assert.False(t, m.IsStreaming)
	assert.Equal(t, "partial", m.Content)
}

func TestMessage_FormatStats(t *testing.T) {
	m := NewMessage(RoleAssistant, "hi")
	assert.Empty(t, m.FormatStats())

	m.TotalDuration = 2500 * time.Millisecond
	m.TokenCount = 128
	m.TokensPerSec = 51
	m.TTFT = 234 * time.Millisecond
	assert.Equal(t, "2.5s | 128 tokens | 51 tok/s | TTFT 234ms", m.FormatStats())

	assert.Empty(t, NewMessage(RoleUser, "q").FormatStats())
}

func TestMessage_Preview(t *testing.T) {
	m := NewMessage(RoleUser, "\nfirst line that is rather long\nsecond")
	assert.Equal(t, "first line...", m.Preview(13))
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_HistorySkipsUnfinishedTurns(t *testing.T) {
	c := New()
	c.AddUserMessage("q1")
	a1 := c.AddAssistantMessage()
	a1.AppendToken("a1")
	a1.FinalizeStream(ollama.StreamStats{})

	q2 := c.AddUserMessage("q2")
	a2 := c.AddAssistantMessage()
	a2.AppendToken("Connection error")
	a2.Fail()
	q2.Fail()

	c.AddUserMessage("q3")
	c.AddAssistantMessage() // still streaming

	assert.Equal(t, []ollama.Message{
		{Role: ollama.RoleUser, Content: "q1"},
		{Role: ollama.RoleAssistant, Content: "a1"},
		{Role: ollama.RoleUser, Content: "q3"},
	}, c.History(10))
}

func TestConversation_HistoryCap(t *testing.T) {
	c := New()
	for i := 0; i < 5; i++ {
		c.AddUserMessage(fmt.Sprintf("m%d", i))
	}
	h := c.History(2)
	require.Len(t, h, 2)
	assert.Equal(t, "m3", h[0].Content)
	assert.Equal(t, "m4", h[1].Content)

	assert.Nil(t, c.History(0))
}

func TestConversation_Clear(t *testing.T) {
	c := New()
	id := c.ID
	c.AddUserMessage("hi")
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.NotEqual(t, id, c.ID)
	assert.Nil(t, c.LastMessage())
}

// =============================================================================
// CONTROLLER TESTS
// =============================================================================

func TestController_SubmitBuildsRequest(t *testing.T) {
	ctrl, client, _, _ := newTestController()
	ctrl.SetSettings(SettingsFromConfig(config.ModelConfig{
		Name: "tiny", SystemPrompt: "sys", Temperature: 0.3, TopP: 0.8, TopK: 20,
		MaxTokens: 300, RepeatPenalty: 1.1, Stream: true, MaxHistory: 4,
	}))

	require.NoError(t, ctrl.Submit("  hello "))
	require.Len(t, client.calls, 1)

	req := client.last().req
	assert.Equal(t, "hello", req.Prompt)
	assert.Equal(t, "tiny", req.Model)
	assert.Equal(t, "sys", req.System)
	assert.True(t, req.Stream)
	assert.Empty(t, req.History, "the new prompt is not part of its own history")
	assert.Equal(t, ollama.Options{Temperature: 0.3, TopP: 0.8, TopK: 20, NumPredict: 300, RepeatPenalty: 1.1}, req.Options)
	assert.True(t, ctrl.Busy())
}

func TestController_TokensReachSinkInOrder(t *testing.T) {
	ctrl, client, q, sink := newTestController()
	require.NoError(t, ctrl.Submit("hi"))

	c := client.last()
	c.onToken("Hel")
	c.onToken("lo")
	c.onOutcome(completed())
	assert.Empty(t, sink.tokens, "callbacks only run on the queue")

	q.Drain()
	assert.Equal(t, []string{"Hel", "lo"}, sink.tokens)
	require.Len(t, sink.outcomes, 1)
	assert.True(t, sink.outcomes[0].OK())
	assert.False(t, ctrl.Busy())

	reply := ctrl.Conversation().LastAssistantMessage()
	require.NotNil(t, reply)
	assert.Equal(t, "Hello", reply.Content)
	assert.Equal(t, 2, reply.TokenCount)
}

func TestController_RejectsSecondRequest(t *testing.T) {
	ctrl, client, q, _ := newTestController()
	require.NoError(t, ctrl.Submit("one"))
	assert.ErrorIs(t, ctrl.Submit("two"), ErrRequestInFlight)
	assert.Len(t, client.calls, 1)
	assert.Equal(t, 2, ctrl.Conversation().MessageCount())

	client.last().onOutcome(completed())
	q.Drain()
	assert.NoError(t, ctrl.Submit("two"))
}

func TestController_RejectsEmptyPrompt(t *testing.T) {
	ctrl, client, _, _ := newTestController()
	assert.ErrorIs(t, ctrl.Submit("   "), ErrEmptyPrompt)
	assert.Empty(t, client.calls)
}

func TestController_HistoryCarriesPreviousTurns(t *testing.T) {
	ctrl, client, q, _ := newTestController()
	require.NoError(t, ctrl.Submit("q1"))
	client.last().onToken("a1")
	client.last().onOutcome(completed())
	q.Drain()

	require.NoError(t, ctrl.Submit("q2"))
	assert.Equal(t, []ollama.Message{
		{Role: ollama.RoleUser, Content: "q1"},
		{Role: ollama.RoleAssistant, Content: "a1"},
	}, client.last().req.History)
}

func TestController_FailedTurnLeftOutOfHistory(t *testing.T) {
	ctrl, client, q, sink := newTestController()
	require.NoError(t, ctrl.Submit("q1"))
	client.last().onToken("Connection error: please ensure Ollama is running.")
	client.last().onOutcome(ollama.Outcome{
		Kind: ollama.OutcomeRecoveredError,
		Err:  &ollama.ClientError{Type: ollama.ErrTypeConnection},
	})
	q.Drain()
	require.Len(t, sink.outcomes, 1)
	assert.False(t, sink.outcomes[0].OK())

	require.NoError(t, ctrl.Submit("q2"))
	assert.Empty(t, client.last().req.History)
}

func TestController_CancelPropagatesToContext(t *testing.T) {
	ctrl, client, _, _ := newTestController()
	assert.False(t, ctrl.Cancel())

	require.NoError(t, ctrl.Submit("hi"))
	ctx := client.last().ctx
	require.NoError(t, ctx.Err())

	assert.True(t, ctrl.Cancel())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, ctrl.Busy(), "busy until the outcome arrives")
}

func TestController_ResetDropsLateTokens(t *testing.T) {
	ctrl, client, q, sink := newTestController()
	require.NoError(t, ctrl.Submit("hi"))
	c := client.last()
	c.onToken("early")
	q.Drain()

	ctrl.Reset()
	assert.True(t, ctrl.Conversation().IsEmpty())
	assert.ErrorIs(t, c.ctx.Err(), context.Canceled)

	c.onToken("late")
	c.onOutcome(ollama.Outcome{Kind: ollama.OutcomeRecoveredError, Err: &ollama.ClientError{Type: ollama.ErrTypeCancelled}})
	q.Drain()

	assert.Equal(t, []string{"early"}, sink.tokens)
	assert.Len(t, sink.outcomes, 1)
	assert.True(t, ctrl.Conversation().IsEmpty())
	assert.False(t, ctrl.Busy())
}

func TestController_CloseRefusesSubmit(t *testing.T) {
	ctrl, client, _, _ := newTestController()
	ctrl.Close()
	assert.ErrorIs(t, ctrl.Submit("hi"), context.Canceled)
	assert.Empty(t, client.calls)
}

// End to end through the real client and queue: every token is delivered
// before the single outcome.
func TestController_WithStreamingClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hi"},"done":false}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":" there"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"eval_count":2}`)
	}))
	defer server.Close()

	client, err := ollama.NewClient(ollama.ClientConfig{Endpoint: server.URL + "/api/chat", Timeout: 5 * time.Second})
	require.NoError(t, err)

	q := dispatch.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	sink := &chanSink{events: make(chan string, 16)}
	ctrl := NewController(client, q, sink, testSettings(), nil)

	require.NoError(t, q.Call(ctx, func() { err = ctrl.Submit("hello") }))
	require.NoError(t, err)

	var events []string
	for ev := range sink.events {
		events = append(events, ev)
		if strings.HasPrefix(ev, "outcome:") {
			break
		}
	}
	assert.Equal(t, []string{"token:Hi", "token: there", "outcome:completed"}, events)

	var reply string
	require.NoError(t, q.Call(ctx, func() { reply = ctrl.Conversation().LastAssistantMessage().Content }))
	assert.Equal(t, "Hi there", reply)
}

type chanSink struct {
	events chan string
}

func (s *chanSink) OnToken(tok string)         { s.events <- "token:" + tok }
func (s *chanSink) OnOutcome(o ollama.Outcome) { s.events <- "outcome:" + o.Kind.String() }
