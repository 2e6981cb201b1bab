// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch provides the serialized execution context that every
// asynchronous source in summon funnels through.
//
// Hotkey activations, idle-timer expiry and streaming callbacks are all
// posted to one Queue. A single goroutine runs the posted functions in FIFO
// order, so state owned by queue code needs no locks.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jeranaias/summon/internal/logging"
)

// ErrClosed is returned by Call after the queue has stopped.
var ErrClosed = errors.New("dispatch queue closed")

// Poster is the narrow view handed to components that only enqueue work.
type Poster interface {
	Post(fn func()) bool
}

// Queue is an unbounded FIFO of functions executed by Run.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	closed  bool
	done    chan struct{}
	logger  *slog.Logger
}

// New creates an idle queue. Call Run to start executing.
func New(logger *slog.Logger) *Queue {
	return &Queue{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logging.OrDiscard(logger),
	}
}

// Post enqueues fn. It never blocks and never runs fn inline. It returns
// false if the queue is closed and fn was dropped.
func (q *Queue) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Call posts fn and waits for it to finish. It must not be called from
// queue code, which would deadlock.
func (q *Queue) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !q.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-q.done:
		// Run may have drained fn just before exiting.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions until ctx is done or Close is called. Work
// already queued when the stop is requested is still run. A panicking
// function is logged and does not stop the queue.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)

	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			q.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}

		select {
		case <-q.wake:
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			q.mu.Unlock()
		}
	}
}

func (q *Queue) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("DISPATCH_PANIC", "panic", r)
		}
	}()
	fn()
}

// Close stops accepting work. Run drains what is already queued and returns.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len reports how many functions are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
