// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/summon/internal/dispatch"
)

// fakeWindow records transitions and lets the test decide when they finish.
type fakeWindow struct {
	shows, hides []func(error)
	onShow       func()
}

func (w *fakeWindow) Show(done func(error)) {
	if w.onShow != nil {
		w.onShow()
	}
	w.shows = append(w.shows, done)
}

func (w *fakeWindow) Hide(done func(error)) {
	w.hides = append(w.hides, done)
}

func (w *fakeWindow) completeShow(err error) { w.shows[len(w.shows)-1](err) }
func (w *fakeWindow) completeHide(err error) { w.hides[len(w.hides)-1](err) }

type harness struct {
	q      *dispatch.Manual
	win    *fakeWindow
	clock  *FakeClock
	m      *Machine
	resets int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{q: &dispatch.Manual{}, win: &fakeWindow{}, clock: &FakeClock{}}
	h.m = NewMachine(h.q, h.win, Config{IdleDelay: 5 * time.Second, Clock: h.clock})
	h.m.OnReset(func() { h.resets++ })
	return h
}

// event posts ev and runs the queue dry.
func (h *harness) event(ev Event) {
	h.m.Dispatch(ev)
	h.q.Drain()
}

func (h *harness) show(t *testing.T) {
	t.Helper()
	h.event(ShowRequested)
	require.Equal(t, Showing, h.m.State())
	h.win.completeShow(nil)
	h.q.Drain()
	require.Equal(t, Visible, h.m.State())
}

func (h *harness) hide(t *testing.T) {
	t.Helper()
	h.event(HideRequested)
	require.Equal(t, Hiding, h.m.State())
	h.win.completeHide(nil)
	h.q.Drain()
	require.Equal(t, Hidden, h.m.State())
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestMachine_StartsHiddenWithoutTimer(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Hidden, h.m.State())
	assert.False(t, h.m.IdleArmed())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestMachine_ShowHideThenIdleReset(t *testing.T) {
	h := newHarness(t)

	h.show(t)
	assert.False(t, h.m.IdleArmed())

	h.hide(t)
	assert.True(t, h.m.IdleArmed())

	h.clock.Advance(4 * time.Second)
	h.q.Drain()
	assert.Equal(t, 0, h.resets)

	h.clock.Advance(time.Second)
	h.q.Drain()
	assert.Equal(t, 1, h.resets)
	assert.Equal(t, Hidden, h.m.State())
	assert.False(t, h.m.IdleArmed())

	// Fires at most once per arming.
	h.clock.Advance(time.Minute)
	h.q.Drain()
	assert.Equal(t, 1, h.resets)
}

func TestMachine_ReshowBeforeExpiryCancelsReset(t *testing.T) {
	h := newHarness(t)
	h.show(t)
	h.hide(t)

	h.clock.Advance(3 * time.Second)
	h.show(t)

	h.clock.Advance(10 * time.Second)
	h.q.Drain()
	assert.Equal(t, 0, h.resets)
	assert.Equal(t, Visible, h.m.State())
}

func TestMachine_ShowDisarmsBeforeWindowChanges(t *testing.T) {
	h := newHarness(t)
	h.show(t)
	h.hide(t)
	require.True(t, h.m.IdleArmed())

	armedDuringShow := true
	h.win.onShow = func() { armedDuringShow = h.m.IdleArmed() }
	h.event(ShowRequested)
	assert.False(t, armedDuringShow)
}

func TestMachine_QueuedTimerFireAfterShowIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.show(t)
	h.hide(t)

	// The timer fires and its callback is waiting in the queue...
	h.clock.Advance(5 * time.Second)
	require.Equal(t, 1, h.q.Len())

	// ...but a show request is handled first.
	h.m.Handle(ShowRequested)
	h.q.Drain()

	assert.Equal(t, 0, h.resets)
	assert.Equal(t, Showing, h.m.State())
}

func TestMachine_EveryHideEventArmsTimer(t *testing.T) {
	for _, ev := range []Event{HideRequested, Deactivated, EscapeKey, Toggle} {
		t.Run(ev.String(), func(t *testing.T) {
			h := newHarness(t)
			h.show(t)

			h.event(ev)
			require.Equal(t, Hiding, h.m.State())
			h.win.completeHide(nil)
			h.q.Drain()

			assert.Equal(t, Hidden, h.m.State())
			assert.True(t, h.m.IdleArmed())
		})
	}
}

// =============================================================================
// COALESCING AND QUEUING
// =============================================================================

func TestMachine_DuplicateShowIsCoalesced(t *testing.T) {
	h := newHarness(t)
	h.event(ShowRequested)
	h.event(ShowRequested)
	h.event(Toggle) // heading visible, so this queues a hide
	h.event(ShowRequested)

	assert.Len(t, h.win.shows, 1)
	h.win.completeShow(nil)
	h.q.Drain()
	assert.Equal(t, Visible, h.m.State())
	assert.Empty(t, h.win.hides, "latest request wins")
}

func TestMachine_OppositeRequestRunsAfterCurrent(t *testing.T) {
	h := newHarness(t)
	h.event(ShowRequested)
	h.event(Deactivated)
	assert.Empty(t, h.win.hides, "hide waits for show to finish")

	h.win.completeShow(nil)
	h.q.Drain()
	assert.Equal(t, Hiding, h.m.State())
	require.Len(t, h.win.hides, 1)

	h.event(ShowRequested)
	h.win.completeHide(nil)
	h.q.Drain()
	assert.Equal(t, Showing, h.m.State())
	assert.False(t, h.m.IdleArmed(), "queued show disarms the timer armed on entering hidden")
}

func TestMachine_HideWhileHiddenIsNoop(t *testing.T) {
	h := newHarness(t)
	h.event(Deactivated)
	h.event(EscapeKey)
	assert.Equal(t, Hidden, h.m.State())
	assert.Empty(t, h.win.hides)
	assert.False(t, h.m.IdleArmed())
}

func TestMachine_ToggleAlternates(t *testing.T) {
	h := newHarness(t)
	h.event(Toggle)
	assert.Equal(t, Showing, h.m.State())
	h.win.completeShow(nil)
	h.q.Drain()

	h.event(Toggle)
	assert.Equal(t, Hiding, h.m.State())
}

// =============================================================================
// FAILURES
// =============================================================================

func TestMachine_FailedShowRevertsToHidden(t *testing.T) {
	h := newHarness(t)
	h.event(ShowRequested)
	h.win.completeShow(errors.New("no display"))
	h.q.Drain()

	assert.Equal(t, Hidden, h.m.State())
	assert.True(t, h.m.IdleArmed())
}

func TestMachine_FailedHideRevertsToVisible(t *testing.T) {
	h := newHarness(t)
	h.show(t)
	h.event(HideRequested)
	h.win.completeHide(errors.New("compositor busy"))
	h.q.Drain()

	assert.Equal(t, Visible, h.m.State())
	assert.False(t, h.m.IdleArmed())
}

func TestMachine_StaleCompletionIgnored(t *testing.T) {
	h := newHarness(t)
	h.event(ShowRequested)
	done := h.win.shows[0]
	done(nil)
	h.q.Drain()
	require.Equal(t, Visible, h.m.State())

	h.event(HideRequested)
	done(nil) // the old show completion again
	h.q.Drain()
	assert.Equal(t, Hiding, h.m.State())
}

// =============================================================================
// LISTENERS
// =============================================================================

func TestMachine_StateListenersSeeEveryStep(t *testing.T) {
	h := newHarness(t)
	var steps []string
	unsubscribe := h.m.OnStateChange(func(from, to State) {
		steps = append(steps, from.String()+">"+to.String())
	})

	h.show(t)
	h.hide(t)
	assert.Equal(t, []string{
		"hidden>showing", "showing>visible", "visible>hiding", "hiding>hidden",
	}, steps)

	unsubscribe()
	h.show(t)
	assert.Len(t, steps, 4)
}

func TestMachine_ResetListenerUnsubscribe(t *testing.T) {
	h := newHarness(t)
	extra := 0
	unsubscribe := h.m.OnReset(func() { extra++ })
	unsubscribe()

	h.show(t)
	h.hide(t)
	h.clock.Advance(5 * time.Second)
	h.q.Drain()
	assert.Equal(t, 1, h.resets)
	assert.Equal(t, 0, extra)
}

func TestMachine_SetIdleDelay(t *testing.T) {
	h := newHarness(t)
	h.m.SetIdleDelay(time.Second)
	h.show(t)
	h.hide(t)
	h.clock.Advance(time.Second)
	h.q.Drain()
	assert.Equal(t, 1, h.resets)
}
