// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the chat screen.
type KeyMap struct {
	Send        key.Binding
	SendAlt     key.Binding
	Newline     key.Binding
	NewSession  key.Binding
	Clear       key.Binding
	NextSession key.Binding
	PrevSession key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Cancel      key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the bindings for the given enter-to-send setting.
// With enterToSend on, Enter sends and Alt+Enter inserts a newline.
// Otherwise Enter inserts a newline and Ctrl+S sends.
func DefaultKeyMap(enterToSend bool) KeyMap {
	km := KeyMap{
		SendAlt: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "send"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear chat"),
		),
		NextSession: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next chat"),
		),
		PrevSession: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "prev chat"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel reply"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "cancel/quit"),
		),
	}
	if enterToSend {
		km.Send = key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "send"))
		km.Newline = key.NewBinding(key.WithKeys("alt+enter"), key.WithHelp("A-Enter", "newline"))
	} else {
		km.Send = key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("C-s", "send"))
		km.Newline = key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "newline"))
	}
	return km
}

// ShortHelp renders the status bar hint line.
func (k KeyMap) ShortHelp() string {
	bindings := []key.Binding{k.Send, k.Newline, k.NewSession, k.NextSession, k.Clear, k.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " | ")
}
