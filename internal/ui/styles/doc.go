// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the color palette and lipgloss styles shared by
// the terminal front ends. All colors are lipgloss.AdaptiveColor values so
// light and dark terminals both render legibly; ThemeFor pins the choice
// when the user's settings ask for a fixed theme.
package styles
