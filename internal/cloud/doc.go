// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenRouter chat-completion client.
//
// OpenRouter exposes many model vendors behind one OpenAI-compatible API.
// This package sends chat histories to it, rotating over a pool of API keys,
// and decodes either a single JSON envelope or a server-sent event stream
// into the reply text.
//
// # Key Types
//
//   - Client: Completion client with key rotation and a per-call timeout
//   - KeyPool: Round-robin API key selection shared across calls
//   - FrameReader: Line-oriented reader for "data:" event frames
//   - APIError: Non-success response carrying the server message
//
// # Usage
//
//	client := cloud.NewClient(key1, key2, key3)
//	text, err := client.Complete(ctx, "deepseek/deepseek-r1:free", history, true)
//
// # Security
//
// API keys are never logged; only a short SHA-256 fingerprint is.
package cloud
