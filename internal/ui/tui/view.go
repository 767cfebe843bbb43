// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/util"
)

// TypingText is shown in place of the pending reply.
const TypingText = "Assistant is typing..."

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderErrorLine(),
		m.theme.Input.Render(m.input.View()),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatus(),
	)
}

func (m Model) renderHeader() string {
	w := max(m.width, minWidth)
	title := m.theme.HeaderTitle.Render("orchat")
	if sess := m.chat.Store().Active(); sess != nil {
		title += "  " + util.TruncateWidth(sess.Title, w/2)
	}
	modelName := m.theme.HeaderModel.Render(model.NewModelInfo(m.chat.SelectedModel()).Label())

	gap := w - lipgloss.Width(title) - lipgloss.Width(modelName) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(w).Render(title + strings.Repeat(" ", gap) + modelName)
}

// renderSidebar lists sessions newest first, two lines each.
func (m Model) renderSidebar() string {
	store := m.chat.Store()
	active := store.ActiveID()
	inner := sidebarWidth - 2
	height := m.viewport.Height + 1 + inputHeight + 2

	var lines []string
	for i, s := range store.Sessions() {
		if len(lines)+2 > height {
			lines = append(lines, m.theme.SessionMetadata.Render(fmt.Sprintf("+%d more", store.Len()-i)))
			break
		}
		title := util.PadWidth(util.TruncateWidth(util.OneLine(s.Title), inner), inner)
		style := m.theme.SessionItem
		if s.ID == active {
			style = m.theme.SessionActive
		}
		meta := fmt.Sprintf("%d msgs, %s", s.MessageCount(), humanize.Time(s.LastUpdated))
		lines = append(lines,
			style.Render(title),
			m.theme.SessionMetadata.Render(util.TruncateWidth(meta, inner)),
		)
	}
	if len(lines) == 0 {
		lines = append(lines, m.theme.Hint.Render(" No chats yet"))
	}

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(height).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderErrorLine() string {
	if m.notice != "" {
		return m.theme.Hint.Render(m.notice)
	}
	if e := m.chat.LastError(); e != "" {
		return m.theme.ErrorBanner.Render(util.TruncateWidth("Error: "+util.OneLine(e), m.viewport.Width))
	}
	return ""
}

func (m Model) renderStatus() string {
	w := max(m.width, minWidth)
	left := "ready"
	if m.sending || m.chat.Busy() {
		left = m.spinner.View() + " waiting for reply"
	}
	line := left + "  " + m.keys.ShortHelp()
	return m.theme.StatusBar.Width(w).Render(util.TruncateWidth(line, w-2))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the active session's messages.
func (m Model) renderTranscript() string {
	sess := m.chat.Store().Active()
	if sess == nil {
		return m.theme.Hint.Render("Press " + m.keys.NewSession.Help().Key + " to start a chat.")
	}

	width := max(m.viewport.Width-2, 10)
	blocks := make([]string, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	label := m.theme.Label(msg.Role).Render(roleLabel(msg.Role))
	if !msg.Timestamp.IsZero() {
		label += " " + m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}

	var body string
	switch {
	case msg.IsTransient:
		body = m.theme.Typing.Render(m.spinner.View() + " " + TypingText)
	case msg.Role == model.RoleAssistant && !msg.IsError:
		body = m.theme.Body(msg).Render(m.markdown.RenderMessage(msg, width-2))
	default:
		body = m.theme.Body(msg).Width(width).Render(msg.Content)
	}
	return label + "\n" + body
}

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "You"
	case model.RoleSystem:
		return "System"
	}
	return "Assistant"
}
