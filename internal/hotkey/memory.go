// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hotkey

import (
	"errors"
	"sync"
)

// MemoryBackend is an in-process Backend. Reserve simulates another
// application owning a combination and Press simulates the OS reporting a
// key press.
type MemoryBackend struct {
	mu       sync.Mutex
	byID     map[int]Combo
	byCombo  map[Combo]int
	reserved map[Combo]bool
	ch       chan int
	closed   bool

	unregisterErr error
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		byID:     make(map[int]Combo),
		byCombo:  make(map[Combo]int),
		reserved: make(map[Combo]bool),
		ch:       make(chan int, 64),
	}
}

func (m *MemoryBackend) Register(id int, c Combo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	if _, taken := m.byCombo[c]; taken || m.reserved[c] {
		return ErrRegistrationConflict
	}
	m.byID[id] = c
	m.byCombo[c] = id
	return nil
}

func (m *MemoryBackend) Unregister(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byID[id]; ok {
		delete(m.byID, id)
		delete(m.byCombo, c)
	}
	return m.unregisterErr
}

func (m *MemoryBackend) Activations() <-chan int {
	return m.ch
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.ch)
	return nil
}

// Reserve marks c as owned by some other application.
func (m *MemoryBackend) Reserve(c Combo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved[c] = true
}

// Press reports an activation of c. It returns false when c is not
// registered here or the backend is closed.
func (m *MemoryBackend) Press(c Combo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCombo[c]
	if !ok || m.closed {
		return false
	}
	select {
	case m.ch <- id:
		return true
	default:
		return false
	}
}

// Registered reports how many combinations are currently held.
func (m *MemoryBackend) Registered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

var errSimulated = errors.New("simulated backend failure")

// FailUnregister makes every later Unregister fail.
func (m *MemoryBackend) FailUnregister() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterErr = errSimulated
}
