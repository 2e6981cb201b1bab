// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import "sync"

// Manual is a Poster that runs nothing until Drain is called. Tests use it to
// interleave queue work deterministically.
type Manual struct {
	mu      sync.Mutex
	pending []func()
}

// Post records fn.
func (m *Manual) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
	return true
}

// Step runs the oldest pending function and reports whether there was one.
func (m *Manual) Step() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	fn := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	fn()
	return true
}

// Drain runs pending functions, including ones they post, until none remain.
// It returns how many ran.
func (m *Manual) Drain() int {
	n := 0
	for m.Step() {
		n++
	}
	return n
}

// Len reports how many functions are waiting.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
