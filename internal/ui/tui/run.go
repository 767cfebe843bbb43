// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/orchat/internal/app"
)

// Run shows the chat screen until the user quits or ctx is done.
func Run(ctx context.Context, a *app.App) error {
	a.EnsureSession()

	p := tea.NewProgram(
		New(a.Chat, a.Config.SystemPrompt),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	notify := notifier(p)
	a.Sessions.OnChange(notify)
	a.Chat.OnChange(notify)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}
	return nil
}

// notifier forwards change callbacks into the program. Callbacks may fire
// on the event loop itself, so delivery happens on its own goroutine and
// bursts collapse into one message.
func notifier(p *tea.Program) func() {
	var pending atomic.Bool
	return func() {
		if pending.Swap(true) {
			return
		}
		go func() {
			pending.Store(false)
			p.Send(stateChangedMsg{})
		}()
	}
}
