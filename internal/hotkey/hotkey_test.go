// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hotkey

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanPoster hands posted functions to the test goroutine.
type chanPoster struct {
	mu  sync.Mutex
	fns chan func()
}

func newChanPoster() *chanPoster {
	return &chanPoster{fns: make(chan func(), 64)}
}

func (p *chanPoster) Post(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fns <- fn
	return true
}

// runOne waits for and runs the next posted function.
func (p *chanPoster) runOne(t *testing.T) {
	t.Helper()
	select {
	case fn := <-p.fns:
		fn()
	case <-time.After(3 * time.Second):
		t.Fatal("nothing was posted")
	}
}

func (p *chanPoster) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case <-p.fns:
		t.Fatal("unexpected post")
	case <-time.After(50 * time.Millisecond):
	}
}

// =============================================================================
// COMBO PARSING
// =============================================================================

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in   string
		want string
		mods Modifiers
	}{
		{"ctrl+space", "ctrl+space", ModControl},
		{"Control+Space", "ctrl+space", ModControl},
		{"shift+alt+k", "alt+shift+k", ModAlt | ModShift},
		{"cmd + shift + 7", "shift+super+7", ModShift | ModSuper},
		{"f12", "f12", 0},
		{"win+esc", "super+escape", ModSuper},
	}
	for _, tt := range tests {
		c, err := ParseCombo(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, c.String(), tt.in)
		assert.Equal(t, tt.mods, c.Mods, tt.in)
	}
}

func TestParseCombo_Invalid(t *testing.T) {
	for _, in := range []string{"", "ctrl+", "ctrl+shift", "ctrl+a+b", "ctrl+f0", "ctrl+f25", "hyper+k", "ctrl++k"} {
		_, err := ParseCombo(in)
		assert.ErrorIs(t, err, ErrInvalidCombo, "%q", in)
	}
}

func TestModifierBits(t *testing.T) {
	assert.Equal(t, Modifiers(1), ModAlt)
	assert.Equal(t, Modifiers(2), ModControl)
	assert.Equal(t, Modifiers(4), ModShift)
	assert.Equal(t, Modifiers(8), ModSuper)
	assert.Equal(t, "Ctrl+Space", DefaultCombo.Display())
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry_IDsIncreaseAndAreNeverReused(t *testing.T) {
	backend := NewMemoryBackend()
	reg := NewRegistry(backend, newChanPoster(), Options{})
	defer reg.Close()

	seen := map[Handle]bool{}
	last := Handle(0)
	for i := 0; i < 5; i++ {
		h, err := reg.Register(MustParseCombo("ctrl+f"+strconv.Itoa(i+1)), func() {})
		require.NoError(t, err)
		assert.Greater(t, h, last)
		assert.False(t, seen[h])
		seen[h] = true
		last = h
		require.NoError(t, reg.Unregister(h))
	}

	// A failed registration also consumes an id.
	backend.Reserve(DefaultCombo)
	_, err := reg.Register(DefaultCombo, func() {})
	require.Error(t, err)
	h, err := reg.Register(MustParseCombo("alt+space"), func() {})
	require.NoError(t, err)
	assert.Equal(t, Handle(7), h)
}

func TestRegistry_FirstIDIsOne(t *testing.T) {
	reg := NewRegistry(NewMemoryBackend(), newChanPoster(), Options{})
	defer reg.Close()

	h, err := reg.Register(DefaultCombo, func() {})
	require.NoError(t, err)
	assert.Equal(t, Handle(1), h)
}

func TestRegistry_ConflictIsReturnedNotRetried(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Reserve(DefaultCombo)
	reg := NewRegistry(backend, newChanPoster(), Options{})
	defer reg.Close()

	_, err := reg.Register(DefaultCombo, func() {})
	require.Error(t, err)

	var regErr *RegistrationError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, DefaultCombo, regErr.Combo)
	assert.True(t, IsConflict(err))
	assert.Equal(t, 0, backend.Registered())
}

func TestRegistry_ActivationRunsCallbackOnQueue(t *testing.T) {
	backend := NewMemoryBackend()
	poster := newChanPoster()
	reg := NewRegistry(backend, poster, Options{})
	defer reg.Close()

	fired := 0
	_, err := reg.Register(DefaultCombo, func() { fired++ })
	require.NoError(t, err)

	require.True(t, backend.Press(DefaultCombo))
	assert.Equal(t, 0, fired, "callback must wait for the queue")
	poster.runOne(t)
	assert.Equal(t, 1, fired)
	poster.assertIdle(t)
}

func TestRegistry_UnregisterIsIdempotentAndDropsStaleActivations(t *testing.T) {
	backend := NewMemoryBackend()
	poster := newChanPoster()
	reg := NewRegistry(backend, poster, Options{})
	defer reg.Close()

	fired := 0
	h, err := reg.Register(DefaultCombo, func() { fired++ })
	require.NoError(t, err)

	require.True(t, backend.Press(DefaultCombo))
	require.NoError(t, reg.Unregister(h))
	require.NoError(t, reg.Unregister(h))
	require.NoError(t, reg.Unregister(Handle(999)))
	assert.False(t, reg.Bound(h))

	poster.runOne(t)
	assert.Equal(t, 0, fired, "activation queued before unregister is dropped")
	assert.False(t, backend.Press(DefaultCombo))
}

func TestRegistry_DebounceDropsRepeats(t *testing.T) {
	backend := NewMemoryBackend()
	poster := newChanPoster()
	reg := NewRegistry(backend, poster, Options{Debounce: time.Hour})
	defer reg.Close()

	fired := 0
	_, err := reg.Register(DefaultCombo, func() { fired++ })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, backend.Press(DefaultCombo))
		poster.runOne(t)
	}
	assert.Equal(t, 1, fired)
}

func TestRegistry_CloseIsBestEffort(t *testing.T) {
	backend := NewMemoryBackend()
	reg := NewRegistry(backend, newChanPoster(), Options{})

	for _, s := range []string{"ctrl+space", "alt+space", "ctrl+k"} {
		_, err := reg.Register(MustParseCombo(s), func() {})
		require.NoError(t, err)
	}
	backend.FailUnregister()

	assert.NoError(t, reg.Close())
	assert.NoError(t, reg.Close())

	_, err := reg.Register(DefaultCombo, func() {})
	assert.ErrorIs(t, err, ErrBackendClosed)
}

// =============================================================================
// FILE BACKEND
// =============================================================================

func TestFileBackend_TriggerActivates(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir, nil)
	require.NoError(t, err)

	poster := newChanPoster()
	reg := NewRegistry(backend, poster, Options{})
	defer reg.Close()

	fired := 0
	_, err = reg.Register(DefaultCombo, func() { fired++ })
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "ctrl+space.lock"))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, Trigger(dir, DefaultCombo))
	poster.runOne(t)
	assert.Equal(t, 1, fired)
}

func TestFileBackend_LiveForeignOwnerConflicts(t *testing.T) {
	dir := t.TempDir()
	// PID 1 is always alive on unix systems.
	if _, err := os.Stat("/proc/1"); err != nil {
		t.Skip("needs a procfs-style system with a live pid 1")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ctrl+space.lock"), []byte("1"), 0600))

	backend, err := NewFileBackend(dir, nil)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.Register(1, DefaultCombo)
	assert.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestFileBackend_LockBeingWrittenConflicts(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, "ctrl+space.lock")
	// Another launcher has created its lock but not written its PID yet.
	require.NoError(t, os.WriteFile(lock, nil, 0600))

	backend, err := NewFileBackend(dir, nil)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.Register(1, DefaultCombo)
	assert.ErrorIs(t, err, ErrRegistrationConflict)

	data, err := os.ReadFile(lock)
	require.NoError(t, err)
	assert.Empty(t, data, "the other launcher's lock is left alone")
}

func TestFileBackend_ReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, "ctrl+space.lock")
	require.NoError(t, os.WriteFile(lock, []byte("not-a-pid"), 0600))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lock, old, old))

	backend, err := NewFileBackend(dir, nil)
	require.NoError(t, err)

	require.NoError(t, backend.Register(1, DefaultCombo))
	require.NoError(t, backend.Close())

	_, err = os.Stat(filepath.Join(dir, "ctrl+space.lock"))
	assert.True(t, os.IsNotExist(err), "Close releases locks")
}

func TestTrigger_NoListener(t *testing.T) {
	err := Trigger(t.TempDir(), DefaultCombo)
	assert.ErrorIs(t, err, ErrNoListener)
}
