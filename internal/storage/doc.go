// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local persistence for chat sessions and settings.
//
// Values are JSON documents stored under fixed string keys in a durable
// key-value backend.
//
// # Key Types
//
//   - KV: Backend interface (Load/Save by key)
//   - FileKV: One JSON file per key, written atomically
//   - SQLiteKV: Single-table SQLite database (modernc.org/sqlite)
//   - Store: Typed access to the session list, settings and default model
//
// # Usage
//
//	kv, err := storage.Open("file", dataDir)
//	store := storage.NewStore(kv)
//	sessions, err := store.LoadSessions(ctx)
//	if errors.Is(err, storage.ErrCorrupt) {
//	    // start empty; the bad value is kept as chatSessions.corrupt
//	}
//
// # Storage Location
//
// Values are stored in ~/.orchat/data/ by default.
package storage
