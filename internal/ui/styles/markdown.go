// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/orchat/internal/model"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// minWrapWidth keeps tiny terminals from wrapping every word.
const minWrapWidth = 20

// Markdown renders assistant replies for the terminal and caches the
// result per message and width. Safe for concurrent use.
type Markdown struct {
	theme string

	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

// NewMarkdown creates a renderer for a Settings.Theme value.
func NewMarkdown(theme string) *Markdown {
	return &Markdown{theme: theme, cache: make(map[string]string)}
}

func (md *Markdown) styleOption() glamour.TermRendererOption {
	switch md.theme {
	case model.ThemeDark:
		return glamour.WithStandardStyle("dark")
	case model.ThemeLight:
		return glamour.WithStandardStyle("light")
	}
	return glamour.WithAutoStyle()
}

// rendererFor returns a renderer wrapping at width. Changing the width
// drops the cache. Callers hold md.mu.
func (md *Markdown) rendererFor(width int) *glamour.TermRenderer {
	if width < minWrapWidth {
		width = minWrapWidth
	}
	if md.renderer != nil && md.width == width {
		return md.renderer
	}
	r, err := glamour.NewTermRenderer(md.styleOption(), glamour.WithWordWrap(width))
	if err != nil {
		r = nil
	}
	md.renderer = r
	md.width = width
	md.cache = make(map[string]string)
	return r
}

// Render renders text at width. The original text, wrapped, is returned if
// glamour fails.
func (md *Markdown) Render(text string, width int) string {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.renderLocked(text, width)
}

func (md *Markdown) renderLocked(text string, width int) string {
	r := md.rendererFor(width)
	if r == nil {
		return lipgloss.NewStyle().Width(max(width, minWrapWidth)).Render(text)
	}
	out, err := r.Render(text)
	if err != nil {
		return lipgloss.NewStyle().Width(max(width, minWrapWidth)).Render(text)
	}
	return strings.Trim(out, "\n")
}

// RenderMessage renders m, reusing the cached output for the same message
// ID and width.
func (md *Markdown) RenderMessage(m model.Message, width int) string {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.rendererFor(width)
	if m.ID == "" {
		return md.renderLocked(m.Content, width)
	}
	if out, ok := md.cache[m.ID]; ok {
		return out
	}
	out := md.renderLocked(m.Content, width)
	md.cache[m.ID] = out
	return out
}
