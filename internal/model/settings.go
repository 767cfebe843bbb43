// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// =============================================================================
// SETTINGS TYPE
// =============================================================================

// Theme values accepted by Settings.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// LanguageAuto lets the presentation layer pick the language.
const LanguageAuto = "auto"

// Settings is the process-wide user preference object.
// Theme and Language only affect presentation.
type Settings struct {
	EnterToSend         bool   `json:"enterToSend"`
	ShowTypingIndicator bool   `json:"showTypingIndicator"`
	StreamResponses     bool   `json:"streamResponses"`
	Theme               string `json:"theme"`
	Language            string `json:"language"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		EnterToSend:         true,
		ShowTypingIndicator: true,
		StreamResponses:     true,
		Theme:               ThemeSystem,
		Language:            LanguageAuto,
	}
}

// Validate checks the presentation fields. Language must be "auto" or a
// well-formed BCP 47 tag.
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("invalid theme %q, must be one of: light, dark, system", s.Theme)
	}
	if s.Language == LanguageAuto {
		return nil
	}
	if _, err := language.Parse(s.Language); err != nil {
		return fmt.Errorf("invalid language %q: %w", s.Language, err)
	}
	return nil
}

// Normalize fills empty presentation fields with defaults and canonicalizes
// the language tag.
func (s Settings) Normalize() Settings {
	if s.Theme == "" {
		s.Theme = ThemeSystem
	}
	s.Theme = strings.ToLower(s.Theme)
	if s.Language == "" {
		s.Language = LanguageAuto
	}
	if s.Language != LanguageAuto {
		if tag, err := language.Parse(s.Language); err == nil {
			s.Language = tag.String()
		}
	}
	return s
}

// LanguageTag returns the configured language, or und for "auto".
func (s Settings) LanguageTag() language.Tag {
	if s.Language == LanguageAuto {
		return language.Und
	}
	tag, err := language.Parse(s.Language)
	if err != nil {
		return language.Und
	}
	return tag
}
