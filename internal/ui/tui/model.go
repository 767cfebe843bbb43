// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/orchat/internal/chat"
	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
	"github.com/jeranaias/orchat/internal/ui/styles"
)

// Layout constants.
const (
	sidebarWidth = 26
	inputHeight  = 3
	minWidth     = 40
	minHeight    = 12
)

// =============================================================================
// MESSAGES
// =============================================================================

// stateChangedMsg reports that the session store or orchestrator changed.
type stateChangedMsg struct{}

// sendDoneMsg carries the outcome of one exchange.
type sendDoneMsg struct {
	result chat.Result
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of the chat screen.
type Model struct {
	chat         *chat.Orchestrator
	systemPrompt string

	theme       *styles.Theme
	themeName   string
	markdown    *styles.Markdown
	keys        KeyMap
	enterToSend bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width  int
	height int

	cancel   context.CancelFunc
	sending  bool
	spinning bool
	notice   string
}

// New creates the chat screen over orch. New sessions are seeded with
// systemPrompt.
func New(orch *chat.Orchestrator, systemPrompt string) Model {
	settings := orch.Settings()

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	m := Model{
		chat:         orch,
		systemPrompt: systemPrompt,
		viewport:     viewport.New(80, 20),
		input:        ta,
		spinner:      sp,
		width:        80,
		height:       24,
	}
	m.applySettings(settings)
	m.layout()
	m.refresh()
	return m
}

// applySettings rebuilds the theme and key map when the settings change.
func (m *Model) applySettings(s model.Settings) {
	if m.theme == nil || m.themeName != s.Theme {
		m.theme = styles.ThemeFor(s.Theme)
		m.themeName = s.Theme
		m.markdown = styles.NewMarkdown(s.Theme)
	}
	if len(m.keys.Send.Keys()) == 0 || m.enterToSend != s.EnterToSend {
		m.enterToSend = s.EnterToSend
		m.keys = DefaultKeyMap(s.EnterToSend)
		m.input.KeyMap.InsertNewline = key.NewBinding(key.WithKeys(m.keys.Newline.Keys()...))
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateChangedMsg:
		m.applySettings(m.chat.Settings())
		m.refresh()
		return m, m.startSpinner()

	case sendDoneMsg:
		m.sending = false
		m.notice = ""
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		switch msg.result.Rejected {
		case chat.RejectBusy:
			m.notice = "A reply is still pending."
		case chat.RejectNoSession:
			m.notice = "That chat no longer exists."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.sending && !m.chat.Busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.sending {
			m.cancelSend()
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.cancelSend()
		return m, nil

	case key.Matches(msg, m.keys.Send), key.Matches(msg, m.keys.SendAlt):
		return m.submit()

	case key.Matches(msg, m.keys.NewSession):
		m.chat.Store().CreateSession(m.systemPrompt)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if m.chat.Busy() {
			m.notice = "Wait for the reply before clearing."
			return m, nil
		}
		if id := m.chat.Store().ActiveID(); id != "" {
			m.chat.Clear(id)
			m.chat.ClearError()
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.NextSession):
		m.cycleSession(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevSession):
		m.cycleSession(-1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input to the active session, creating one if needed.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	if m.chat.Busy() {
		m.notice = "A reply is still pending."
		return m, nil
	}

	store := m.chat.Store()
	sess := store.Active()
	if sess == nil {
		sess = store.CreateSession(m.systemPrompt)
	}

	m.input.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.sending = true
	m.refresh()

	return m, tea.Batch(m.sendCmd(ctx, text, sess.ID), m.startSpinner())
}

// sendCmd runs the exchange off the event loop.
func (m Model) sendCmd(ctx context.Context, text, sessionID string) tea.Cmd {
	orch := m.chat
	return func() tea.Msg {
		return sendDoneMsg{result: orch.Send(ctx, text, sessionID)}
	}
}

func (m *Model) cancelSend() {
	if m.cancel == nil {
		return
	}
	logging.Debugf("TUI_SEND_CANCELLED")
	m.cancel()
	m.cancel = nil
	m.notice = "Cancelling..."
}

// startSpinner starts the tick loop once per busy period.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !(m.sending || m.chat.Busy()) {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// cycleSession moves the active pointer by delta, wrapping around.
func (m *Model) cycleSession(delta int) {
	store := m.chat.Store()
	list := store.Sessions()
	if len(list) == 0 {
		return
	}
	idx := 0
	active := store.ActiveID()
	for i, s := range list {
		if s.ID == active {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(list)) % len(list)
	store.SelectSession(list[idx].ID)
	m.refresh()
}

// layout sizes the widgets for the current window.
func (m *Model) layout() {
	w, h := max(m.width, minWidth), max(m.height, minHeight)

	mainWidth := w - sidebarWidth - 1
	// header + error line + input (with border) + status bar
	vpHeight := h - 1 - 1 - (inputHeight + 2) - 1

	m.viewport.Width = mainWidth
	m.viewport.Height = max(vpHeight, 1)
	m.input.SetWidth(mainWidth - 2)
}

// refresh re-renders the transcript of the active session.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.sending {
		m.viewport.GotoBottom()
	}
}
