// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"time"
)

// =============================================================================
// CHAT SESSION TYPE
// =============================================================================

// ChatSession is one conversation thread with its own history and prompt.
type ChatSession struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	LastUpdated  time.Time `json:"lastUpdated"`
	SystemPrompt string    `json:"systemPrompt"`
}

// NewChatSession creates a session seeded with a single system message.
// An empty prompt falls back to DefaultSystemPrompt.
func NewChatSession(systemPrompt string) *ChatSession {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	now := time.Now()
	return &ChatSession{
		ID:           SessionIDAt(now),
		Title:        DefaultTitle,
		Messages:     []Message{NewSystemMessage(systemPrompt)},
		LastUpdated:  now,
		SystemPrompt: systemPrompt,
	}
}

// SessionIDAt renders t as a session ID (Unix milliseconds).
func SessionIDAt(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// History returns the messages with transient placeholders removed.
// This is the conversation sent to the completion API.
func (s *ChatSession) History() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.IsTransient {
			continue
		}
		out = append(out, m)
	}
	return out
}

// TransientCount returns how many placeholder messages the session holds.
func (s *ChatSession) TransientCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.IsTransient {
			n++
		}
	}
	return n
}

// LastMessage returns the final message, or nil if there are none.
func (s *ChatSession) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// MessageCount returns the number of non-system, non-transient messages.
func (s *ChatSession) MessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role != RoleSystem && !m.IsTransient {
			n++
		}
	}
	return n
}

// Preview returns the content of the most recent user message, or "".
func (s *ChatSession) Preview() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Clone returns a deep copy of the session.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}
