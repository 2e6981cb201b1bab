// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log/slog"
	"time"

	"github.com/jeranaias/summon/internal/logging"
)

// DefaultIdleDelay is how long the window may stay hidden before a reset.
const DefaultIdleDelay = 5 * time.Second

// Poster enqueues work on the dispatch queue.
type Poster interface {
	Post(fn func()) bool
}

// Window performs the visible part of a transition. done may be called
// from any goroutine, exactly once; a non-nil error means the window did
// not change.
type Window interface {
	Show(done func(error))
	Hide(done func(error))
}

// Config configures a Machine.
type Config struct {
	IdleDelay time.Duration // default DefaultIdleDelay
	Clock     Clock         // default RealClock
	Logger    *slog.Logger
}

type pendingRequest int

const (
	pendingNone pendingRequest = iota
	pendingShow
	pendingHide
)

type listener[F any] struct {
	id int
	fn F
}

// Machine is the visibility state machine.
type Machine struct {
	poster Poster
	window Window
	clock  Clock
	logger *slog.Logger
	delay  time.Duration

	state      State
	pending    pendingRequest
	transition uint64 // bumped per transition; stale completions are ignored

	timer    Timer
	armed    bool
	timerGen uint64 // bumped on every arm and disarm; stale fires are ignored

	nextListener   int
	stateListeners []listener[func(from, to State)]
	resetListeners []listener[func()]
}

// NewMachine creates a machine in the Hidden state with no timer armed.
func NewMachine(poster Poster, window Window, cfg Config) *Machine {
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = DefaultIdleDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Machine{
		poster: poster,
		window: window,
		clock:  cfg.Clock,
		logger: logging.OrDiscard(cfg.Logger),
		delay:  cfg.IdleDelay,
		state:  Hidden,
	}
}

// =============================================================================
// INPUTS
// =============================================================================

// Dispatch posts ev to the queue. It is the one method safe to call from
// any goroutine.
func (m *Machine) Dispatch(ev Event) bool {
	return m.poster.Post(func() { m.Handle(ev) })
}

// Handle applies ev.
func (m *Machine) Handle(ev Event) {
	switch ev {
	case ShowRequested:
		m.requestShow(ev)
	case HideRequested, Deactivated, EscapeKey:
		m.requestHide(ev)
	case Toggle:
		if m.heading() == Visible {
			m.requestHide(ev)
		} else {
			m.requestShow(ev)
		}
	default:
		m.logger.Warn("SESSION_UNKNOWN_EVENT", "event", int(ev))
	}
}

// heading is where the machine will end up once in-flight and pending work
// is done.
func (m *Machine) heading() State {
	switch m.pending {
	case pendingShow:
		return Visible
	case pendingHide:
		return Hidden
	}
	return m.state.destination()
}

func (m *Machine) requestShow(ev Event) {
	// Before anything visual happens, so a reset can never land on a
	// conversation the user is looking at.
	m.disarm()

	switch m.state {
	case Hidden:
		m.begin(Showing)
	case Showing:
		m.pending = pendingNone
		m.logger.Debug("SESSION_COALESCED", "event", ev.String(), "state", m.state.String())
	case Visible:
	case Hiding:
		m.pending = pendingShow
		m.logger.Debug("SESSION_QUEUED", "event", ev.String(), "behind", m.state.String())
	}
}

func (m *Machine) requestHide(ev Event) {
	switch m.state {
	case Visible:
		m.begin(Hiding)
	case Hiding:
		m.pending = pendingNone
		m.logger.Debug("SESSION_COALESCED", "event", ev.String(), "state", m.state.String())
	case Hidden:
	case Showing:
		m.pending = pendingHide
		m.logger.Debug("SESSION_QUEUED", "event", ev.String(), "behind", m.state.String())
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (m *Machine) begin(to State) {
	m.transition++
	id := m.transition
	done := func(err error) {
		m.poster.Post(func() { m.finish(id, err) })
	}

	m.setState(to)
	if to == Showing {
		m.window.Show(done)
	} else {
		m.window.Hide(done)
	}
}

func (m *Machine) finish(id uint64, err error) {
	if id != m.transition || (m.state != Showing && m.state != Hiding) {
		m.logger.Debug("SESSION_STALE_COMPLETION", "transition", id)
		return
	}

	if err != nil {
		// Back to where we were; the window never changed.
		revert := Visible
		if m.state == Showing {
			revert = Hidden
		}
		m.logger.Warn("SESSION_TRANSITION_FAILED", "state", m.state.String(), "revert", revert.String(), "error", err)
		m.enter(revert)
	} else {
		m.enter(m.state.destination())
	}

	next := m.pending
	m.pending = pendingNone
	switch {
	case next == pendingShow && m.state == Hidden:
		m.requestShow(ShowRequested)
	case next == pendingHide && m.state == Visible:
		m.requestHide(HideRequested)
	}
}

// enter settles into a stable state.
func (m *Machine) enter(s State) {
	m.setState(s)
	if s == Hidden {
		m.arm()
	}
}

func (m *Machine) setState(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.logger.Debug("SESSION_STATE", "from", from.String(), "to", to.String())
	for _, l := range m.stateListeners {
		l.fn(from, to)
	}
}

// =============================================================================
// IDLE TIMER
// =============================================================================

func (m *Machine) arm() {
	m.stopTimer()
	m.timerGen++
	gen := m.timerGen
	m.armed = true
	m.timer = m.clock.AfterFunc(m.delay, func() {
		m.poster.Post(func() { m.idleFired(gen) })
	})
	m.logger.Debug("IDLE_TIMER_ARMED", "delay", m.delay)
}

func (m *Machine) disarm() {
	if !m.armed {
		return
	}
	m.stopTimer()
	m.timerGen++
	m.armed = false
	m.logger.Debug("IDLE_TIMER_DISARMED")
}

func (m *Machine) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) idleFired(gen uint64) {
	if !m.armed || gen != m.timerGen || m.state != Hidden {
		m.logger.Debug("IDLE_TIMER_STALE", "generation", gen)
		return
	}
	m.armed = false
	m.timer = nil

	m.logger.Info("CONVERSATION_RESET_REQUESTED", "idle", m.delay)
	for _, l := range m.resetListeners {
		l.fn()
	}
}

// =============================================================================
// LISTENERS AND ACCESSORS
// =============================================================================

// OnStateChange registers fn for every state change, including the
// intermediate Showing and Hiding states. The returned func unregisters it.
func (m *Machine) OnStateChange(fn func(from, to State)) func() {
	m.nextListener++
	id := m.nextListener
	m.stateListeners = append(m.stateListeners, listener[func(from, to State)]{id: id, fn: fn})
	return func() {
		m.stateListeners = removeListener(m.stateListeners, id)
	}
}

// OnReset registers fn for ConversationResetRequested. The returned func
// unregisters it.
func (m *Machine) OnReset(fn func()) func() {
	m.nextListener++
	id := m.nextListener
	m.resetListeners = append(m.resetListeners, listener[func()]{id: id, fn: fn})
	return func() {
		m.resetListeners = removeListener(m.resetListeners, id)
	}
}

func removeListener[F any](ls []listener[F], id int) []listener[F] {
	out := ls[:0:0]
	for _, l := range ls {
		if l.id != id {
			out = append(out, l)
		}
	}
	return out
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// IdleArmed reports whether a reset is scheduled.
func (m *Machine) IdleArmed() bool {
	return m.armed
}

// SetIdleDelay changes the delay used from the next arming on.
func (m *Machine) SetIdleDelay(d time.Duration) {
	if d > 0 {
		m.delay = d
	}
}
