// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/summon/internal/config"
	"github.com/jeranaias/summon/internal/conversation"
	"github.com/jeranaias/summon/internal/dispatch"
	"github.com/jeranaias/summon/internal/hotkey"
	"github.com/jeranaias/summon/internal/logging"
	"github.com/jeranaias/summon/internal/ollama"
	"github.com/jeranaias/summon/internal/session"
	"github.com/jeranaias/summon/internal/ui/chat"
	"github.com/jeranaias/summon/internal/ui/styles"
)

// Options configures the launcher.
type Options struct {
	Config *config.Config

	// ConfigPath is watched for changes when non-empty.
	ConfigPath string

	// Adjust is applied to every reloaded config, so command-line
	// overrides survive a reload.
	Adjust func(*config.Config)

	// Logger defaults to one opened from Config.Log.
	Logger *slog.Logger

	// Backend overrides the hotkey backend chosen by Config.Hotkey.Backend.
	Backend hotkey.Backend

	Clock session.Clock
}

// App is one launcher instance.
type App struct {
	opts     Options
	logger   *slog.Logger
	closeLog func() error

	ctx    context.Context
	cancel context.CancelFunc

	queue   *dispatch.Queue
	client  *ollama.Client
	ctrl    *conversation.Controller
	machine *session.Machine
	combo   hotkey.Combo
	sender  chat.Sender
	program *tea.Program

	// Owned by the queue once started.
	registry     *hotkey.Registry
	cfg          *config.Config
	cancelOnHide bool

	started   bool
	closeOnce sync.Once
}

// New builds a launcher bound to a full-screen terminal program. Nothing
// runs until Run.
func New(ctx context.Context, opts Options) (*App, error) {
	a, err := newApp(ctx, opts)
	if err != nil {
		return nil, err
	}

	a.program = tea.NewProgram(chat.New(a.chatOptions()),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(a.ctx),
	)
	a.attach(a.program)
	return a, nil
}

// newApp builds everything that does not depend on the program.
func newApp(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: nil config")
	}
	cfg := opts.Config

	combo, err := hotkey.ParseCombo(cfg.Hotkey.Combo)
	if err != nil {
		return nil, err
	}

	logger, closeLog := opts.Logger, func() error { return nil }
	if logger == nil {
		l, closer, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		logger, closeLog = l, closer
	}

	client, err := ollama.NewClient(ollama.ClientConfig{
		Endpoint: cfg.Model.Endpoint,
		Timeout:  cfg.Model.Timeout(),
		Logger:   logger,
	})
	if err != nil {
		closeLog()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	return &App{
		opts:         opts,
		logger:       logger,
		closeLog:     closeLog,
		ctx:          ctx,
		cancel:       cancel,
		queue:        dispatch.New(logger),
		client:       client,
		combo:        combo,
		cfg:          cfg,
		cancelOnHide: cfg.Session.CancelOnHide,
	}, nil
}

// attach connects the session machine and controller to s.
func (a *App) attach(s chat.Sender) {
	a.sender = s
	a.machine = session.NewMachine(a.queue, chat.NewWindow(s), session.Config{
		IdleDelay: a.cfg.Session.IdleDelay(),
		Clock:     a.opts.Clock,
		Logger:    a.logger,
	})
	a.ctrl = conversation.NewController(a.client, a.queue, chat.NewSink(s),
		conversation.SettingsFromConfig(a.cfg.Model), a.logger)

	a.machine.OnReset(a.resetConversation)
	a.machine.OnStateChange(a.stateChanged)
}

func (a *App) chatOptions() chat.Options {
	return chat.Options{
		Theme:      styles.NewTheme(a.cfg.UI.Theme),
		ModelName:  a.cfg.Model.Name,
		Hotkey:     a.combo.Display(),
		ToggleKeys: terminalKeys(a.combo),
		Markdown:   a.cfg.UI.Markdown,
		Transition: styles.FadeTransition,
		Actions: chat.Actions{
			Submit:   a.submit,
			Dispatch: a.dispatch,
		},
	}
}

// terminalKeys maps a global combo onto the key name a terminal reports
// for it, so the toggle also works while the terminal has focus.
func terminalKeys(c hotkey.Combo) []string {
	s := c.String()
	switch {
	case s == "ctrl+space":
		return nil // ctrl+@ is always bound
	case strings.HasSuffix(s, "+space"):
		return []string{strings.TrimSuffix(s, "space") + " "}
	}
	return []string{s}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start runs the queue, claims the hotkey and starts the config watcher.
func (a *App) Start() {
	if a.started {
		return
	}
	a.started = true
	go a.queue.Run(a.ctx)

	if err := a.queue.Call(a.ctx, a.bindHotkey); err != nil {
		a.logger.Warn("HOTKEY_BIND_SKIPPED", "error", err)
	}
	if a.opts.ConfigPath != "" {
		go a.watchConfig(a.opts.ConfigPath)
	}
	a.logger.Info("LAUNCHER_STARTED",
		"model", a.cfg.Model.Name,
		"endpoint", a.client.Endpoint(),
		"hotkey", a.combo.String(),
		"idle_reset", a.cfg.Session.IdleDelay())
}

// Run starts the launcher and blocks until the user exits or ctx ends.
func (a *App) Run() error {
	a.Start()
	defer a.Close()

	_, err := a.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && a.ctx.Err() != nil {
		err = nil
	}
	a.logger.Info("LAUNCHER_EXIT", "error", err)
	return err
}

// Close releases the hotkey, stops any request and drains the queue. It is
// safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		// Queued ahead of the cancel so it runs in order with other queue
		// work; Run still drains it after the context ends.
		posted := a.started && a.queue.Post(a.teardown)

		// Cancelling unblocks any queue function waiting in Send.
		a.cancel()
		a.queue.Close()
		if a.started {
			<-a.queue.Done()
		}
		if !posted {
			// No queue goroutine is left to race with.
			a.teardown()
		}
		a.closeLog()
	})
}

// teardown releases queue-owned resources.
func (a *App) teardown() {
	if a.registry != nil {
		a.registry.Close()
	}
	if a.ctrl != nil {
		a.ctrl.Close()
	}
}

// =============================================================================
// HOTKEY
// =============================================================================

// bindHotkey runs on the queue, which owns the registry.
func (a *App) bindHotkey() {
	backend, err := a.newBackend()
	if err != nil {
		a.hotkeyUnavailable(err)
		return
	}
	a.registry = hotkey.NewRegistry(backend, a.queue, hotkey.Options{
		Debounce: a.cfg.Hotkey.Debounce(),
		Logger:   a.logger,
	})
	if _, err := a.registry.Register(a.combo, func() { a.machine.Handle(session.Toggle) }); err != nil {
		a.hotkeyUnavailable(err)
	}
}

func (a *App) newBackend() (hotkey.Backend, error) {
	if a.opts.Backend != nil {
		return a.opts.Backend, nil
	}
	switch a.cfg.Hotkey.Backend {
	case "memory":
		return hotkey.NewMemoryBackend(), nil
	default:
		dir, err := a.cfg.Hotkey.TriggerDir()
		if err != nil {
			return nil, err
		}
		return hotkey.NewFileBackend(dir, a.logger)
	}
}

// hotkeyUnavailable keeps the launcher running without its global hotkey
// and says so on the tray line.
func (a *App) hotkeyUnavailable(err error) {
	a.logger.Warn("HOTKEY_UNAVAILABLE", "combo", a.combo.String(), "conflict", hotkey.IsConflict(err), "error", err)
	notice := fmt.Sprintf("%s unavailable: %v", a.combo.Display(), err)
	a.queue.Post(func() { a.sender.Send(chat.NoticeMsg(notice)) })
}

// =============================================================================
// QUEUE-SIDE HANDLERS
// =============================================================================

// submit is called by the program; it must not wait on the queue.
func (a *App) submit(prompt string) {
	a.queue.Post(func() {
		if err := a.ctrl.Submit(prompt); err != nil {
			a.logger.Debug("SUBMIT_REJECTED", "error", err)
			a.sender.Send(chat.SubmitErrorMsg{Err: err})
		}
	})
}

func (a *App) dispatch(ev session.Event) {
	a.machine.Dispatch(ev)
}

func (a *App) resetConversation() {
	a.ctrl.Reset()
	a.sender.Send(chat.ResetMsg{})
}

func (a *App) stateChanged(from, to session.State) {
	a.logger.Debug("WINDOW_STATE", "from", from.String(), "to", to.String())
	if to == session.Hiding && a.cancelOnHide && a.ctrl.Cancel() {
		a.logger.Info("REQUEST_CANCELLED_ON_HIDE")
	}
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

func (a *App) watchConfig(path string) {
	err := config.Watch(a.ctx, path, a.logger, func(next *config.Config) {
		a.queue.Post(func() { a.applyConfig(next) })
	})
	if err != nil {
		a.logger.Warn("CONFIG_WATCH_FAILED", "path", path, "error", err)
	}
}

// applyConfig takes the settings that can change while running. The
// endpoint, hotkey and theme are read once at startup.
func (a *App) applyConfig(next *config.Config) {
	if a.opts.Adjust != nil {
		a.opts.Adjust(next)
	}
	if err := next.Validate(); err != nil {
		a.logger.Warn("CONFIG_RELOAD_REJECTED", "error", err)
		return
	}

	a.machine.SetIdleDelay(next.Session.IdleDelay())
	a.ctrl.SetSettings(conversation.SettingsFromConfig(next.Model))
	a.cancelOnHide = next.Session.CancelOnHide

	if next.Model.Endpoint != a.cfg.Model.Endpoint || next.Hotkey != a.cfg.Hotkey || next.UI != a.cfg.UI {
		a.logger.Info("CONFIG_RESTART_REQUIRED", "reason", "endpoint, hotkey or ui changed")
	}
	a.cfg = next
	config.SetGlobal(next)
	a.sender.Send(chat.NoticeMsg("settings reloaded"))
}
