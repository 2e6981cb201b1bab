// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hotkey

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Poster enqueues work on the application's dispatch queue.
type Poster interface {
	Post(fn func()) bool
}

// Handle identifies one registered binding.
type Handle int

type binding struct {
	id       int
	combo    Combo
	callback func()
	limiter  *rate.Limiter
}

// Options configures a Registry.
type Options struct {
	// Debounce drops activations closer together than this (0 disables).
	Debounce time.Duration
	Logger   *slog.Logger
}

// Registry owns hotkey bindings and routes backend activations to their
// callbacks. Callbacks always run on the Poster's queue.
//
// The binding table belongs to that queue: Register, Unregister, Bound and
// Close must be called from queue code. Only the pump runs elsewhere, and it
// touches nothing but the backend's activation channel and the Poster.
//
// Binding ids start at 1 and only ever increase, so an id is never handed
// out twice during a Registry's lifetime.
type Registry struct {
	backend Backend
	poster  Poster
	opts    Options
	logger  *slog.Logger

	nextID   int
	bindings map[int]*binding
	closed   bool

	closeOnce sync.Once
	pumpDone  chan struct{}
}

// NewRegistry wraps backend and starts forwarding its activations to poster.
func NewRegistry(backend Backend, poster Poster, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		backend:  backend,
		poster:   poster,
		opts:     opts,
		logger:   logger,
		bindings: make(map[int]*binding),
		pumpDone: make(chan struct{}),
	}
	go r.pump()
	return r
}

// Register claims c and arranges for callback to run on the dispatch queue
// each time it is pressed. Failures come back as *RegistrationError and are
// not retried.
func (r *Registry) Register(c Combo, callback func()) (Handle, error) {
	if r.closed {
		return 0, &RegistrationError{Combo: c, Err: ErrBackendClosed}
	}
	r.nextID++
	id := r.nextID

	if err := r.backend.Register(id, c); err != nil {
		r.logger.Warn("HOTKEY_REGISTER_FAILED", "combo", c.String(), "id", id, "error", err)
		return 0, &RegistrationError{Combo: c, Err: err}
	}

	b := &binding{id: id, combo: c, callback: callback}
	if r.opts.Debounce > 0 {
		b.limiter = rate.NewLimiter(rate.Every(r.opts.Debounce), 1)
	}
	r.bindings[id] = b

	r.logger.Info("HOTKEY_REGISTERED", "combo", c.String(), "id", id)
	return Handle(id), nil
}

// Unregister releases h. Unknown or already released handles are a no-op.
func (r *Registry) Unregister(h Handle) error {
	b, ok := r.bindings[int(h)]
	if !ok {
		return nil
	}
	delete(r.bindings, int(h))

	if err := r.backend.Unregister(b.id); err != nil {
		r.logger.Warn("HOTKEY_UNREGISTER_FAILED", "combo", b.combo.String(), "id", b.id, "error", err)
		return err
	}
	r.logger.Info("HOTKEY_UNREGISTERED", "combo", b.combo.String(), "id", b.id)
	return nil
}

// Bound reports whether h is currently registered.
func (r *Registry) Bound(h Handle) bool {
	_, ok := r.bindings[int(h)]
	return ok
}

// Close unregisters every outstanding binding, ignoring failures, and shuts
// the backend down. It is safe to call more than once.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.closed = true
		remaining := make([]*binding, 0, len(r.bindings))
		for _, b := range r.bindings {
			remaining = append(remaining, b)
		}
		r.bindings = make(map[int]*binding)

		for _, b := range remaining {
			if err := r.backend.Unregister(b.id); err != nil {
				r.logger.Debug("HOTKEY_DISPOSE_IGNORED", "combo", b.combo.String(), "id", b.id, "error", err)
			}
		}
		if err := r.backend.Close(); err != nil {
			r.logger.Debug("HOTKEY_BACKEND_CLOSE_IGNORED", "error", err)
		}
		<-r.pumpDone
		r.logger.Info("HOTKEY_DISPOSED", "released", len(remaining))
	})
	return nil
}

// pump moves backend activations onto the dispatch queue.
func (r *Registry) pump() {
	defer close(r.pumpDone)
	for id := range r.backend.Activations() {
		id := id
		if !r.poster.Post(func() { r.activate(id) }) {
			r.logger.Debug("HOTKEY_ACTIVATION_DROPPED", "id", id, "reason", "queue_closed")
		}
	}
}

// activate runs on the dispatch queue.
func (r *Registry) activate(id int) {
	b := r.bindings[id]
	if b == nil {
		// Released between the key press and now.
		r.logger.Debug("HOTKEY_ACTIVATION_STALE", "id", id)
		return
	}
	if b.limiter != nil && !b.limiter.Allow() {
		r.logger.Debug("HOTKEY_ACTIVATION_DEBOUNCED", "combo", b.combo.String())
		return
	}
	r.logger.Debug("HOTKEY_ACTIVATED", "combo", b.combo.String(), "id", id)
	if b.callback != nil {
		b.callback()
	}
}
