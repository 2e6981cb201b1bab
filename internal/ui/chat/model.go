// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/summon/internal/conversation"
	"github.com/jeranaias/summon/internal/ollama"
	"github.com/jeranaias/summon/internal/session"
	"github.com/jeranaias/summon/internal/ui/styles"
)

// Status line texts.
const (
	StatusReady    = "Ready"
	StatusThinking = "Thinking..."
	StatusError    = "Error occurred"
	StatusStopped  = "Stopped"
)

var errSuperseded = errors.New("transition superseded")

// Actions are the model's only ways to affect the rest of the app. Both must
// return without waiting on the dispatch queue.
type Actions struct {
	Submit   func(prompt string)
	Dispatch func(ev session.Event)
}

// Options configures a Model.
type Options struct {
	Theme      *styles.Theme
	ModelName  string
	Hotkey     string // display form, e.g. "Ctrl+Space"
	ToggleKeys []string
	Markdown   bool
	Transition styles.Transition
	Actions    Actions
}

type mode int

const (
	modeHidden mode = iota
	modeShowing
	modeVisible
	modeHiding
)

type statusKind int

const (
	statusReady statusKind = iota
	statusThinking
	statusError
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the launcher.
type Model struct {
	opts  Options
	theme *styles.Theme
	keys  KeyMap

	// Visibility, as last told by the session machine
	mode    mode
	frame   int
	animSeq int
	done    func(error)

	// Components
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	// Transcript as displayed
	messages []*conversation.Message
	rendered map[string]string // message id -> markdown output

	busy       bool
	status     string
	statusKind statusKind
	notice     string

	width  int
	height int
	ready  bool

	copy func(string) error
}

// New creates the model in its hidden (tray) state.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ThemeAuto)
	}
	if opts.Actions.Submit == nil {
		opts.Actions.Submit = func(string) {}
	}
	if opts.Actions.Dispatch == nil {
		opts.Actions.Dispatch = func(session.Event) {}
	}

	input := textinput.New()
	input.Placeholder = "Ask me anything..."
	input.Prompt = "> "
	input.PromptStyle = opts.Theme.InputPrompt
	input.CharLimit = 4000

	return Model{
		opts:     opts,
		theme:    opts.Theme,
		keys:     DefaultKeyMap(opts.ToggleKeys...),
		input:    input,
		viewport: viewport.New(0, 0),
		spinner: spinner.New(
			spinner.WithSpinner(styles.ThinkingSpinner),
			spinner.WithStyle(opts.Theme.Spinner),
		),
		rendered: make(map[string]string),
		status:   StatusReady,
		copy:     clipboard.WriteAll,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.BlurMsg:
		if m.mode != modeHidden {
			m.opts.Actions.Dispatch(session.Deactivated)
		}
		return m, nil

	case ShowMsg:
		return m.beginTransition(modeShowing, msg.Done)

	case HideMsg:
		return m.beginTransition(modeHiding, msg.Done)

	case frameMsg:
		return m.advance(msg)

	case TokenMsg:
		m.appendToken(string(msg))
		return m, nil

	case OutcomeMsg:
		m.finishReply(msg.Outcome)
		return m, nil

	case ResetMsg:
		m.messages = nil
		m.rendered = make(map[string]string)
		m.input.Reset()
		if !m.busy {
			m.setStatus(statusReady, StatusReady)
		}
		m.refresh()
		return m, nil

	case SubmitErrorMsg:
		m.dropPendingTurn()
		m.busy = false
		m.setStatus(statusError, msg.Err.Error())
		m.refresh()
		return m, nil

	case NoticeMsg:
		m.notice = string(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	dispatch := m.opts.Actions.Dispatch

	switch m.mode {
	case modeHidden:
		switch {
		case key.Matches(msg, m.keys.Toggle):
			dispatch(session.Toggle)
		case key.Matches(msg, m.keys.Show):
			dispatch(session.ShowRequested)
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil

	case modeShowing, modeHiding:
		switch {
		case key.Matches(msg, m.keys.ForceQuit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			dispatch(session.Toggle)
		case key.Matches(msg, m.keys.Hide):
			dispatch(session.EscapeKey)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Hide):
		dispatch(session.EscapeKey)
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		dispatch(session.Toggle)
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.Copy):
		m.copyLastReply()
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" || m.busy {
		return m, nil
	}
	m.input.Reset()

	m.messages = append(m.messages,
		conversation.NewMessage(conversation.RoleUser, prompt),
		conversation.NewAssistantMessage())
	m.busy = true
	m.setStatus(statusThinking, StatusThinking)
	m.refresh()

	m.opts.Actions.Submit(prompt)
	return m, m.spinner.Tick
}

func (m *Model) copyLastReply() {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.Role != conversation.RoleAssistant || msg.IsStreaming || msg.Failed {
			continue
		}
		if err := m.copy(msg.Content); err != nil {
			m.setStatus(statusError, "Copy failed: "+err.Error())
		} else {
			m.setStatus(statusReady, "Copied reply to clipboard")
		}
		return
	}
}

// =============================================================================
// VISIBILITY
// =============================================================================

func (m Model) beginTransition(to mode, done func(error)) (tea.Model, tea.Cmd) {
	if m.done != nil {
		m.done(errSuperseded)
	}
	m.mode = to
	m.frame = 0
	m.animSeq++
	m.done = done

	if to == modeHiding {
		m.input.Blur()
	}
	if m.opts.Transition.Frames <= 0 {
		return m.completeTransition()
	}
	return m, m.nextFrame()
}

func (m Model) nextFrame() tea.Cmd {
	seq := m.animSeq
	return tea.Tick(m.opts.Transition.FrameInterval(), func(time.Time) tea.Msg {
		return frameMsg{seq: seq}
	})
}

func (m Model) advance(msg frameMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.animSeq || (m.mode != modeShowing && m.mode != modeHiding) {
		return m, nil
	}
	m.frame++
	if m.frame >= m.opts.Transition.Frames {
		return m.completeTransition()
	}
	return m, m.nextFrame()
}

func (m Model) completeTransition() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.mode == modeShowing {
		m.mode = modeVisible
		cmd = m.input.Focus()
		m.viewport.GotoBottom()
	} else {
		m.mode = modeHidden
	}

	done := m.done
	m.done = nil
	if done != nil {
		done(nil)
	}
	return m, cmd
}

// =============================================================================
// REPLIES
// =============================================================================

func (m *Model) lastReply() *conversation.Message {
	if len(m.messages) == 0 {
		return nil
	}
	last := m.messages[len(m.messages)-1]
	if last.Role != conversation.RoleAssistant || !last.IsStreaming {
		return nil
	}
	return last
}

func (m *Model) appendToken(tok string) {
	reply := m.lastReply()
	if reply == nil {
		return
	}
	reply.AppendToken(tok)
	m.refresh()
}

func (m *Model) finishReply(o ollama.Outcome) {
	m.busy = false
	reply := m.lastReply()

	switch {
	case o.OK():
		if reply != nil {
			reply.FinalizeStream(o.Stats)
		}
		m.setStatus(statusReady, StatusReady)
	case o.Err != nil && o.Err.Type == ollama.ErrTypeCancelled:
		if reply != nil {
			reply.Fail()
		}
		m.setStatus(statusReady, StatusStopped)
	default:
		if reply != nil {
			reply.Fail()
		}
		m.setStatus(statusError, StatusError)
	}
	m.refresh()
}

// dropPendingTurn removes the prompt and empty reply added by submit.
func (m *Model) dropPendingTurn() {
	n := len(m.messages)
	if n >= 2 && m.messages[n-1].IsStreaming && m.messages[n-1].IsEmpty() {
		m.messages = m.messages[:n-2]
	}
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 2
	inputHeight  = 3
	footerHeight = 1
)

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	m.viewport.Width = width
	m.viewport.Height = max(1, height-headerHeight-inputHeight-footerHeight)
	m.input.Width = max(10, width-8)

	m.renderer = nil
	m.rendered = make(map[string]string)
	if m.opts.Markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.GlamourStyle()),
			glamour.WithWordWrap(max(20, width-4)),
		)
		if err == nil {
			m.renderer = r
		}
	}
	m.refresh()
}

// refresh re-renders the transcript and keeps the newest line in view.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
