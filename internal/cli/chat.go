// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/summon/internal/config"
	"github.com/jeranaias/summon/internal/conversation"
	"github.com/jeranaias/summon/internal/dispatch"
	"github.com/jeranaias/summon/internal/ollama"
)

// =============================================================================
// CHAT COMMAND
// =============================================================================

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// replSink prints reply fragments as they arrive and reports the outcome.
// Its methods run on the dispatch queue.
type replSink struct {
	out  io.Writer
	done chan ollama.Outcome
}

func newReplSink(out io.Writer) *replSink {
	return &replSink{out: out, done: make(chan ollama.Outcome, 1)}
}

func (s *replSink) OnToken(tok string) {
	io.WriteString(s.out, tok)
}

func (s *replSink) OnOutcome(o ollama.Outcome) {
	s.done <- o
}

// HandleChat runs the interactive chat loop until /quit, EOF or Ctrl+D.
func HandleChat(ctx context.Context, args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	logger, closeLog := openLogger(cfg)
	defer closeLog()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	queue := dispatch.New(logger)
	go queue.Run(ctx)
	defer queue.Close()

	sink := newReplSink(os.Stdout)
	ctrl := conversation.NewController(client, queue, sink, conversation.SettingsFromConfig(cfg.Model), logger)
	defer ctrl.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := chatHistoryPath()
	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer saveHistory(line, historyPath)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	r := &repl{
		in:         line,
		out:        os.Stdout,
		queue:      queue,
		ctrl:       ctrl,
		sink:       sink,
		interrupts: interrupts,
		pal:        newPalette(cfg.UI.Theme),
	}
	r.banner(cfg.Model.Name)
	return r.run(ctx)
}

func chatHistoryPath() string {
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	if err := config.EnsureDir(); err != nil {
		return ""
	}
	return filepath.Join(dir, "chat_history")
}

func saveHistory(line *liner.State, path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

// =============================================================================
// REPL
// =============================================================================

// caller runs a function on the dispatch queue and waits for it.
type caller interface {
	Call(ctx context.Context, fn func()) error
	Post(fn func()) bool
}

type repl struct {
	in         lineReader
	out        io.Writer
	queue      caller
	ctrl       *conversation.Controller
	sink       *replSink
	interrupts <-chan os.Signal
	pal        palette
}

func (r *repl) banner(model string) {
	fmt.Fprintln(r.out, r.pal.Title.Render("summon chat")+" "+r.pal.Muted.Render("("+model+")"))
	fmt.Fprintln(r.out, r.pal.Muted.Render("Type /help for commands, /quit or Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

func (r *repl) run(ctx context.Context) error {
	for {
		text, err := r.in.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		r.in.AppendHistory(text)

		if strings.HasPrefix(text, "/") {
			quit, err := r.command(ctx, text)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.send(ctx, text); err != nil {
			return err
		}
	}
}

// send submits prompt and blocks until its outcome. An interrupt while
// waiting cancels the request instead of exiting.
func (r *repl) send(ctx context.Context, prompt string) error {
	var submitErr error
	err := r.queue.Call(ctx, func() {
		// The label goes out on the queue so it precedes the first token.
		if submitErr = r.ctrl.Submit(prompt); submitErr == nil {
			fmt.Fprint(r.out, r.pal.Bot.Render("Summon: "))
		}
	})
	if err != nil {
		return err
	}
	if submitErr != nil {
		fmt.Fprintln(r.out, r.pal.Error.Render("Error: ")+submitErr.Error())
		return nil
	}

	for {
		select {
		case o := <-r.sink.done:
			fmt.Fprintln(r.out)
			r.report(o)
			return nil
		case <-r.interrupts:
			r.queue.Post(func() { r.ctrl.Cancel() })
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *repl) report(o ollama.Outcome) {
	switch {
	case o.OK():
		if o.Stats.Tokens > 0 {
			stats := fmt.Sprintf("%d tokens in %s", o.Stats.Tokens, o.Stats.Elapsed().Round(time.Millisecond))
			fmt.Fprintln(r.out, r.pal.Muted.Render(stats))
		}
	case o.Err != nil && o.Err.Type == ollama.ErrTypeCancelled:
		fmt.Fprintln(r.out, r.pal.Warn.Render("(stopped)"))
	}
	fmt.Fprintln(r.out)
}

// command handles a slash command and reports whether the loop should end.
func (r *repl) command(ctx context.Context, text string) (bool, error) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/clear", "/reset":
		if err := r.queue.Call(ctx, r.ctrl.Reset); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.pal.OK.Render("Conversation cleared."))

	case "/model":
		var current string
		err := r.queue.Call(ctx, func() {
			s := r.ctrl.Settings()
			if len(fields) > 1 {
				s.Model = fields[1]
				r.ctrl.SetSettings(s)
			}
			current = s.Model
		})
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.pal.Label.Render("Model: ")+r.pal.Value.Render(current))

	case "/help", "/?":
		fmt.Fprintln(r.out, "  /clear          Start a new conversation")
		fmt.Fprintln(r.out, "  /model [NAME]   Show or switch the model")
		fmt.Fprintln(r.out, "  /quit           Exit")
		fmt.Fprintln(r.out, "  Ctrl+C          Stop the current answer")

	default:
		fmt.Fprintln(r.out, r.pal.Warn.Render("Unknown command "+fields[0]+" (try /help)"))
	}
	return false, nil
}
