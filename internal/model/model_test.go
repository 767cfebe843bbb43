// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestNewChatSession_SeedsSystemPrompt(t *testing.T) {
	s := NewChatSession("Be terse.")

	if len(s.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(s.Messages))
	}
	if s.Messages[0].Role != RoleSystem {
		t.Errorf("Messages[0].Role = %q, want system", s.Messages[0].Role)
	}
	if s.Messages[0].Content != "Be terse." {
		t.Errorf("Messages[0].Content = %q, want %q", s.Messages[0].Content, "Be terse.")
	}
	if s.SystemPrompt != "Be terse." {
		t.Errorf("SystemPrompt = %q", s.SystemPrompt)
	}
	if s.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", s.Title, DefaultTitle)
	}
}

func TestNewChatSession_DefaultPrompt(t *testing.T) {
	s := NewChatSession("")
	if s.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("SystemPrompt = %q, want default", s.SystemPrompt)
	}
	if s.Messages[0].Content != DefaultSystemPrompt {
		t.Errorf("seed content = %q, want default", s.Messages[0].Content)
	}
}

func TestSessionIDAt(t *testing.T) {
	ts := time.UnixMilli(1714000000123)
	if got := SessionIDAt(ts); got != "1714000000123" {
		t.Errorf("SessionIDAt() = %q", got)
	}
}

func TestChatSession_HistoryExcludesTransient(t *testing.T) {
	s := NewChatSession("")
	s.Messages = append(s.Messages, NewUserMessage("hi"), NewTransientMessage())

	h := s.History()
	if len(h) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(h))
	}
	for _, m := range h {
		if m.IsTransient {
			t.Error("History() returned a transient message")
		}
	}
	if s.TransientCount() != 1 {
		t.Errorf("TransientCount() = %d, want 1", s.TransientCount())
	}
	if s.MessageCount() != 1 {
		t.Errorf("MessageCount() = %d, want 1", s.MessageCount())
	}
	if s.Preview() != "hi" {
		t.Errorf("Preview() = %q, want hi", s.Preview())
	}
}

func TestChatSession_CloneIsIndependent(t *testing.T) {
	s := NewChatSession("")
	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages = append(c.Messages, NewUserMessage("x"))

	if s.Messages[0].Content != DefaultSystemPrompt {
		t.Error("Clone shares message storage with original")
	}
	if len(s.Messages) != 1 {
		t.Error("append on clone leaked into original")
	}
}

func TestMessage_JSONFieldNames(t *testing.T) {
	m := NewErrorMessage()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"role":"assistant"`, `"isError":true`, `"timestamp"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "isTransient") {
		t.Errorf("JSON %s should omit false isTransient", s)
	}
}

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleSystem, "System"},
		{Role("other"), "other"},
	}
	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("%q.DisplayName() = %q, want %q", tc.role, got, tc.want)
		}
	}
	if Role("tool").Valid() {
		t.Error("tool should not be a valid role")
	}
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"dark theme", func(s *Settings) { s.Theme = ThemeDark }, false},
		{"indonesian", func(s *Settings) { s.Language = "id" }, false},
		{"region tag", func(s *Settings) { s.Language = "en-GB" }, false},
		{"bad theme", func(s *Settings) { s.Theme = "neon" }, true},
		{"bad language", func(s *Settings) { s.Language = "not a tag!" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(&s)
			err := s.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSettings_Normalize(t *testing.T) {
	s := Settings{Theme: "DARK", Language: "EN-us"}.Normalize()
	if s.Theme != ThemeDark {
		t.Errorf("Theme = %q, want dark", s.Theme)
	}
	if s.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", s.Language)
	}

	empty := Settings{}.Normalize()
	if empty.Theme != ThemeSystem || empty.Language != LanguageAuto {
		t.Errorf("Normalize() on empty = %+v", empty)
	}
}

// =============================================================================
// MODEL REGISTRY TESTS
// =============================================================================

func TestBuiltinModels_ContainsDefault(t *testing.T) {
	if _, ok := GetModelInfo(DefaultModel); !ok {
		t.Errorf("default model %q missing from built-in list", DefaultModel)
	}
	for _, m := range BuiltinModels() {
		if m.ID == "" || m.Name == "" || m.Provider == "" {
			t.Errorf("incomplete model info: %+v", m)
		}
		if !m.Free {
			t.Errorf("built-in model %q should be free", m.ID)
		}
	}
}

func TestNewModelInfo(t *testing.T) {
	m := NewModelInfo("qwen/qwen3-8b:free")
	if m.Provider != "qwen" || m.Name != "qwen3-8b" || !m.Free {
		t.Errorf("NewModelInfo() = %+v", m)
	}
	if m.Label() != "qwen3-8b (qwen)" {
		t.Errorf("Label() = %q", m.Label())
	}

	bare := NewModelInfo("openrouter/auto")
	if bare.Free {
		t.Error("openrouter/auto should not be free")
	}
}

func TestSearchModels(t *testing.T) {
	all := BuiltinModels()
	if got := SearchModels(all, ""); len(got) != len(all) {
		t.Errorf("empty query returned %d models, want %d", len(got), len(all))
	}
	for _, m := range SearchModels(all, "GEMMA") {
		if !strings.Contains(m.ID, "gemma") {
			t.Errorf("SearchModels(GEMMA) returned %q", m.ID)
		}
	}
	if got := SearchModels(all, "no-such-model"); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestMergeModels(t *testing.T) {
	base := []ModelInfo{NewModelInfo("a/one:free"), NewModelInfo("b/two:free")}
	extra := []ModelInfo{NewModelInfo("z/zed"), NewModelInfo("a/one:free"), NewModelInfo("c/three")}

	got := MergeModels(base, extra)
	want := []string{"a/one:free", "b/two:free", "c/three", "z/zed"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d] = %q, want %q", i, got[i].ID, id)
		}
	}
}
