// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/orchat/internal/model"
)

// Theme holds the styled components of the terminal UI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style
	Sidebar     lipgloss.Style
	StatusBar   lipgloss.Style
	Input       lipgloss.Style

	// Sidebar entries
	SessionItem     lipgloss.Style
	SessionActive   lipgloss.Style
	SessionMetadata lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	UserBody       lipgloss.Style
	AssistantBody  lipgloss.Style
	SystemBody     lipgloss.Style
	ErrorBody      lipgloss.Style
	Typing         lipgloss.Style
	Timestamp      lipgloss.Style

	// Feedback
	ErrorBanner lipgloss.Style
	Hint        lipgloss.Style
}

// NewTheme creates a theme for the terminal's detected background.
func NewTheme() *Theme {
	return newTheme(termenv.HasDarkBackground())
}

// ThemeFor resolves a Settings.Theme value. "system" follows the terminal.
func ThemeFor(setting string) *Theme {
	switch setting {
	case model.ThemeDark:
		lipgloss.SetHasDarkBackground(true)
		return newTheme(true)
	case model.ThemeLight:
		lipgloss.SetHasDarkBackground(false)
		return newTheme(false)
	}
	return NewTheme()
}

func newTheme(isDark bool) *Theme {
	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderModel = lipgloss.NewStyle().
		Foreground(Cyan)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(1)

	t.SessionActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SelectionBg).
		PaddingLeft(1)

	t.SessionMetadata = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(1)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(UserBubbleBorder)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(AssistantBubbleBorder)
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(SystemBubbleBorder)

	t.UserBody = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)

	t.AssistantBody = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBubbleBorder).
		PaddingLeft(1)

	t.SystemBody = lipgloss.NewStyle().
		Foreground(SystemBubbleFg).
		Italic(true).
		PaddingLeft(2)

	t.ErrorBody = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(Rose).
		PaddingLeft(1)

	t.Typing = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ErrorBanner = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true).
		Padding(0, 1)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// Body returns the body style for a message.
func (t *Theme) Body(m model.Message) lipgloss.Style {
	switch {
	case m.IsError:
		return t.ErrorBody
	case m.Role == model.RoleUser:
		return t.UserBody
	case m.Role == model.RoleSystem:
		return t.SystemBody
	}
	return t.AssistantBody
}

// Label returns the label style for a role.
func (t *Theme) Label(role model.Role) lipgloss.Style {
	switch role {
	case model.RoleUser:
		return t.UserLabel
	case model.RoleSystem:
		return t.SystemLabel
	}
	return t.AssistantLabel
}
