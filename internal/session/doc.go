// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the in-memory list of chat sessions and the active
// session pointer.
//
// Every mutation is saved through the configured Persistence before the
// method returns. Sessions handed out by the Store are immutable snapshots:
// a mutation replaces the affected session value and copies only its
// message slice, so earlier snapshots and unrelated sessions are untouched.
//
// # Key Types
//
//   - Store: Session list, active pointer and mutation operations
//   - Persistence: Load/save of the session list (see package storage)
//
// # Usage
//
//	store := session.NewStore(persist)
//	if err := store.Load(ctx); err != nil { ... }
//	s := store.CreateSession("")
//	store.AppendMessage(s.ID, model.NewUserMessage("hi"))
package session
