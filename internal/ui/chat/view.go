// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/summon/internal/conversation"
	"github.com/jeranaias/summon/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	switch m.mode {
	case modeHidden:
		return m.trayView()
	case modeVisible:
		return m.chatView()
	}

	// Mid-transition: reveal (or retract) the chat view from the top.
	p := m.opts.Transition.Progress(m.frame)
	if m.mode == modeHiding {
		p = 1 - p
	}
	lines := strings.Split(m.chatView(), "\n")
	n := int(math.Ceil(p * float64(len(lines))))
	return strings.Join(lines[:n], "\n")
}

// =============================================================================
// TRAY
// =============================================================================

func (m Model) trayView() string {
	t := m.theme
	hotkey := m.opts.Hotkey
	if hotkey == "" {
		hotkey = "Ctrl+Space"
	}

	var b strings.Builder
	b.WriteString(t.TrayBrand.Render("[summon]"))
	b.WriteString(t.Tray.Render(" " + m.status + " | "))
	b.WriteString(t.TrayKey.Render(hotkey))
	b.WriteString(t.Tray.Render(" or "))
	b.WriteString(t.TrayKey.Render("o"))
	b.WriteString(t.Tray.Render(" to open | "))
	b.WriteString(t.TrayKey.Render("q"))
	b.WriteString(t.Tray.Render(" to exit"))
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(t.TrayNotice.Render(m.notice))
	}
	return b.String()
}

// =============================================================================
// CHAT
// =============================================================================

func (m Model) chatView() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.theme.Input.Width(max(10, m.width-2)).Render(m.input.View()),
		m.footerView(),
	)
}

func (m Model) headerView() string {
	t := m.theme
	title := t.HeaderTitle.Render("Summon")
	if m.opts.ModelName != "" {
		title += t.HeaderModel.Render("  " + util.TruncateWidth(m.opts.ModelName, max(10, m.width/2)))
	}
	return t.Header.Width(max(10, m.width)).Render(title)
}

func (m Model) footerView() string {
	t := m.theme

	var status string
	switch m.statusKind {
	case statusThinking:
		status = m.spinner.View() + t.StatusThinking.Render(m.status)
	case statusError:
		status = t.StatusError.Render(m.status)
	default:
		status = t.StatusReady.Render(m.status)
	}

	var help []string
	for _, b := range m.keys.chatHelp() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	helpText := t.Help.Render(strings.Join(help, " | "))

	gap := m.width - lipgloss.Width(status) - lipgloss.Width(helpText)
	if gap < 1 {
		return status
	}
	return status + strings.Repeat(" ", gap) + helpText
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	if len(m.messages) == 0 {
		return m.theme.Help.Render("Ask a question and press Enter.")
	}
	parts := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		parts = append(parts, m.renderMessage(msg))
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderMessage(msg *conversation.Message) string {
	t := m.theme
	width := max(10, m.width-4)

	label := t.AssistantLabel.Render(msg.Role.DisplayName())
	if msg.Role == conversation.RoleUser {
		label = t.UserLabel.Render(msg.Role.DisplayName())
	}

	content := msg.DisplayContent()
	var body string
	switch {
	case msg.IsStreaming && content == "":
		body = m.spinner.View() + t.StatusThinking.Render(StatusThinking)
	case msg.Failed:
		body = t.ErrorBubble.Width(width).Render(content)
	case msg.Role == conversation.RoleUser:
		body = t.UserBubble.Width(width).Render(content)
	case !msg.IsStreaming && m.renderer != nil:
		body = m.markdown(msg)
	default:
		body = t.AssistantBubble.Width(width).Render(content)
	}

	out := label + "\n" + body
	if stats := msg.FormatStats(); stats != "" {
		out += "\n" + t.Stats.Render(stats)
	}
	return out
}

// markdown renders a finished reply once and caches it.
func (m *Model) markdown(msg *conversation.Message) string {
	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}
	out, err := m.renderer.Render(msg.Content)
	if err != nil {
		return m.theme.AssistantBubble.Render(msg.Content)
	}
	out = strings.Trim(out, "\n")
	m.rendered[msg.ID] = out
	return out
}
