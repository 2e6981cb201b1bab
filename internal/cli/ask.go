// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/summon/internal/conversation"
	"github.com/jeranaias/summon/internal/ollama"
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// streamer runs one completion synchronously. *ollama.Client satisfies it.
type streamer interface {
	Stream(ctx context.Context, req ollama.CompletionRequest, onToken func(string), onOutcome func(ollama.Outcome))
}

type askOptions struct {
	Query    string
	Settings conversation.Settings
	// Render buffers the answer and renders it as markdown at the end.
	Render bool
	Theme  string
	Width  int
}

// HandleAsk answers one question on stdout. Without a prompt argument it
// reads the question from piped stdin.
func HandleAsk(ctx context.Context, args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	logger, closeLog := openLogger(cfg)
	defer closeLog()

	query := args.Query
	if query == "" && !IsStdinTTY() {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		query = string(data)
	}
	if strings.TrimSpace(query) == "" {
		return usageError("ask requires a prompt")
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return ask(ctx, client, askOptions{
		Query:    query,
		Settings: conversation.SettingsFromConfig(cfg.Model),
		Render:   !args.RawOutput && cfg.UI.Markdown && IsStdoutTTY(),
		Theme:    cfg.UI.Theme,
		Width:    TerminalWidth(),
	}, os.Stdout)
}

// ask sends one prompt without history. Tokens go straight to w unless the
// answer is being rendered. A cancelled request is not an error.
func ask(ctx context.Context, client streamer, opts askOptions, w io.Writer) error {
	prompt := conversation.NormalizePrompt(opts.Query)
	if prompt == "" {
		return conversation.ErrEmptyPrompt
	}
	s := opts.Settings
	req := ollama.CompletionRequest{
		Prompt:  prompt,
		Model:   s.Model,
		System:  s.System,
		Options: s.Options,
		Stream:  s.Stream,
	}

	var buf strings.Builder
	var outcome ollama.Outcome
	client.Stream(ctx, req,
		func(tok string) {
			if opts.Render {
				buf.WriteString(tok)
				return
			}
			io.WriteString(w, tok)
		},
		func(o ollama.Outcome) { outcome = o })

	if opts.Render {
		fmt.Fprint(w, renderMarkdown(buf.String(), opts.Theme, opts.Width))
	} else {
		fmt.Fprintln(w)
	}

	if outcome.OK() {
		return nil
	}
	if outcome.Err == nil || outcome.Err.Type == ollama.ErrTypeCancelled {
		return nil
	}
	return outcome.Err
}

// renderMarkdown falls back to the raw text if glamour fails.
func renderMarkdown(text, theme string, width int) string {
	if width > 100 {
		width = 100
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width - 4)}
	switch theme {
	case "dark", "light":
		opts = append(opts, glamour.WithStandardStyle(theme))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}
