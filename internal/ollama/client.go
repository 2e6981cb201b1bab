// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jeranaias/summon/internal/logging"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// Endpoint is the full completion URL. A path ending in /api/generate
	// selects the prompt-style body; anything else gets the chat body.
	Endpoint string

	// Timeout bounds the whole request, from dial to last byte (default: 30s).
	Timeout time.Duration

	// HTTPClient may be replaced in tests. Its own Timeout should be zero.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultEndpoint is the chat endpoint of a local Ollama.
const DefaultEndpoint = "http://127.0.0.1:11434/api/chat"

// DefaultConfig returns the default client configuration.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Endpoint: DefaultEndpoint,
		Timeout:  30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one inference endpoint. It is safe for concurrent use; the
// one-request-at-a-time rule is enforced by its caller.
type Client struct {
	config     ClientConfig
	endpoint   *url.URL
	generate   bool
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the endpoint and fills zero values with defaults.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		// No client-level timeout: the per-request context carries it.
		config.HTTPClient = &http.Client{}
	}

	u, err := url.Parse(config.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid endpoint %q", config.Endpoint)
	}

	return &Client{
		config:     config,
		endpoint:   u,
		generate:   strings.HasSuffix(path.Clean(u.Path), "/api/generate"),
		httpClient: config.HTTPClient,
		logger:     logging.OrDiscard(config.Logger),
	}, nil
}

// Endpoint returns the configured completion URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Timeout returns the whole-request budget.
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}

// baseURL is scheme://host, used for the health and model-list calls.
func (c *Client) baseURL() string {
	return c.endpoint.Scheme + "://" + c.endpoint.Host
}

// =============================================================================
// COMPLETION
// =============================================================================

// Stream sends req and blocks until the response is finished, calling
// onToken for each fragment in order and onOutcome exactly once at the end.
// Both callbacks run on the calling goroutine.
func (c *Client) Stream(ctx context.Context, req CompletionRequest, onToken func(string), onOutcome func(Outcome)) {
	req = req.clone()
	started := time.Now()
	var stats StreamStats
	var outcome Outcome

	defer func() {
		if r := recover(); r != nil {
			cerr := &ClientError{Type: ErrTypeUnexpected, Message: "internal error", Cause: fmt.Errorf("panic: %v", r)}
			outcome = c.fail(req, cerr, onToken)
		}
		outcome.Stats = stats
		c.logOutcome(req, outcome, time.Since(started))
		onOutcome(outcome)
	}()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	stats, err := c.do(ctx, reqCtx, req, onToken)
	if err != nil {
		outcome = c.fail(req, err, onToken)
		return
	}
	outcome = Outcome{Kind: OutcomeCompleted}
}

// Submit runs Stream on a new goroutine and returns immediately.
func (c *Client) Submit(ctx context.Context, req CompletionRequest, onToken func(string), onOutcome func(Outcome)) {
	go c.Stream(ctx, req, onToken, onOutcome)
}

// do performs the HTTP exchange. Any returned error is a *ClientError.
func (c *Client) do(parent, ctx context.Context, req CompletionRequest, onToken func(string)) (StreamStats, error) {
	body, err := c.encode(req)
	if err != nil {
		return StreamStats{}, &ClientError{Type: ErrTypeUnexpected, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return StreamStats{}, &ClientError{Type: ErrTypeUnexpected, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "application/x-ndjson")
	}

	c.logger.Debug("STREAM_START", "model", req.Model, "endpoint", c.endpoint.String(), "stream", req.Stream, "history", len(req.History))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return StreamStats{}, c.classify(parent, ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			detail = apiErr.Error
		}
		return StreamStats{}, statusError(resp, detail)
	}

	if !req.Stream {
		return c.single(parent, ctx, resp.Body, onToken)
	}

	reader := NewStreamReader(resp.Body)
	if err := reader.Process(ctx, onToken); err != nil {
		return reader.Stats(), c.classify(parent, ctx, err)
	}
	stats := reader.Stats()
	if stats.Skipped > 0 {
		c.logger.Debug("STREAM_LINES_SKIPPED", "count", stats.Skipped)
	}
	return stats, nil
}

// single handles stream=false: one JSON object holding the whole reply.
func (c *Client) single(parent, ctx context.Context, body io.Reader, onToken func(string)) (StreamStats, error) {
	stats := StreamStats{StartTime: time.Now()}
	raw, err := io.ReadAll(body)
	if err != nil {
		return stats, c.classify(parent, ctx, err)
	}

	var rec streamRecord
	if err := json.Unmarshal(bytes.TrimSpace(raw), &rec); err != nil {
		return stats, &ClientError{Type: ErrTypeUnexpected, Message: "failed to decode response", Cause: err}
	}
	if rec.Error != "" {
		return stats, &ClientError{Type: ErrTypeUnexpected, Message: "server reported an error", Cause: errors.New(rec.Error)}
	}
	if text := rec.fragment(); text != "" {
		stats.Tokens = 1
		onToken(text)
	}
	stats.Model = rec.Model
	stats.Done = rec.Done
	stats.CompletionTokens = rec.EvalCount
	stats.EvalDuration = time.Duration(rec.EvalDuration)
	stats.EndTime = time.Now()
	return stats, nil
}

// classify prefers what the contexts say over the error text: a cancelled
// parent is a cancel, an expired request context is a timeout.
func (c *Client) classify(parent, ctx context.Context, err error) *ClientError {
	if errors.Is(parent.Err(), context.Canceled) {
		return &ClientError{Type: ErrTypeCancelled, Message: "request cancelled", Cause: err}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return classify(parent, err)
}

// fail emits the explanatory token (when there is one) and builds the outcome.
func (c *Client) fail(req CompletionRequest, err error, onToken func(string)) Outcome {
	var cerr *ClientError
	if !errors.As(err, &cerr) {
		cerr = &ClientError{Type: ErrTypeUnexpected, Message: "unexpected error", Cause: err}
	}
	msg := explain(cerr, c.baseURL(), req.Model, c.config.Timeout)
	if msg != "" {
		func() {
			// onToken may be what panicked in the first place.
			defer func() { recover() }()
			onToken(msg)
		}()
	}
	if msg == "" {
		msg = cerr.Error()
	}
	return Outcome{Kind: OutcomeRecoveredError, Message: msg, Err: cerr}
}

func (c *Client) logOutcome(req CompletionRequest, o Outcome, elapsed time.Duration) {
	if o.Kind == OutcomeCompleted {
		c.logger.Info("STREAM_COMPLETE",
			"model", req.Model,
			"tokens", o.Stats.Tokens,
			"skipped", o.Stats.Skipped,
			"done", o.Stats.Done,
			"elapsed", elapsed.Round(time.Millisecond))
		return
	}
	level := slog.LevelWarn
	if o.Err.Type == ErrTypeCancelled {
		level = slog.LevelInfo
	}
	c.logger.Log(context.Background(), level, "STREAM_FAILED",
		"model", req.Model,
		"type", o.Err.Type.String(),
		"error", o.Err.Error(),
		"tokens", o.Stats.Tokens,
		"elapsed", elapsed.Round(time.Millisecond))
}

func (c *Client) encode(req CompletionRequest) ([]byte, error) {
	if c.generate {
		return json.Marshal(generateRequest{
			Model:   req.Model,
			Prompt:  req.Prompt,
			System:  req.System,
			Stream:  req.Stream,
			Options: req.Options,
		})
	}

	msgs := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: req.System})
	}
	msgs = append(msgs, req.History...)
	msgs = append(msgs, Message{Role: RoleUser, Content: req.Prompt})

	return json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   req.Stream,
		Options:  req.Options,
	})
}

// =============================================================================
// HEALTH AND MODELS
// =============================================================================

// CheckRunning verifies that the server answers on its root URL.
func (c *Client) CheckRunning(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeUnexpected, Message: "failed to create request", Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(context.Background(), ctx, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "")
	}
	return nil
}

// ListModels returns the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnexpected, Message: "failed to create request", Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(context.Background(), ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "")
	}

	var result listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeUnexpected, Message: "failed to decode response", Cause: err}
	}
	return result.Models, nil
}

// HasModel reports whether name is installed. A bare name matches its
// ":latest" tag.
func HasModel(models []ModelInfo, name string) bool {
	for _, m := range models {
		if m.Name == name || m.Name == name+":latest" {
			return true
		}
	}
	return false
}
