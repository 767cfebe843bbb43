// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// FIXED TEXT
// =============================================================================

const (
	// DefaultSystemPrompt seeds sessions created without an explicit prompt.
	DefaultSystemPrompt = "You are a helpful assistant."

	// DefaultModel is used when neither config nor storage names a model.
	DefaultModel = "deepseek/deepseek-r1:free"

	// ErrorReply is the assistant text appended when an exchange fails.
	ErrorReply = "An error occurred while generating the response."

	// NoResponseReply is returned when a completion carries no content.
	NoResponseReply = "No response from the model."

	// TransientContent is the placeholder text shown while waiting.
	TransientContent = "..."

	// DefaultTitle is the title given to new sessions.
	DefaultTitle = "New Chat"

	// MaxTitleLength bounds user-chosen session titles, in runes.
	MaxTitleLength = 200
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a chat session.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// IsTransient marks the placeholder shown while a reply is pending.
	IsTransient bool `json:"isTransient,omitempty"`

	// IsError marks the assistant reply of a failed exchange.
	IsError bool `json:"isError,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewTransientMessage creates the assistant placeholder for a pending reply.
func NewTransientMessage() Message {
	m := NewMessage(RoleAssistant, TransientContent)
	m.IsTransient = true
	return m
}

// NewErrorMessage creates the assistant reply recorded for a failed exchange.
func NewErrorMessage() Message {
	m := NewMessage(RoleAssistant, ErrorReply)
	m.IsError = true
	return m
}
