// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat sessions, their messages, user settings and the
// model catalog.
//
// # Key Types
//
//   - ChatSession: One conversation with its messages and system prompt
//   - Message: Single turn with role, content, timestamp and state flags
//   - Settings: Process-wide preferences (streaming, typing indicator, theme)
//   - ModelInfo: Display metadata for an OpenRouter model ID
//
// # Usage
//
// Create a session and inspect the history sent to the API:
//
//	s := model.NewChatSession(model.DefaultSystemPrompt)
//	s.Messages = append(s.Messages, model.NewUserMessage("Hello!"))
//	history := s.History() // transient placeholders excluded
package model
