// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates one exchange between a session and the
// completion backend.
//
// The Orchestrator owns the process-wide busy flag, the last-error slot,
// the selected model and the settings. A Send appends the user message,
// optionally shows a transient placeholder, calls the Completer and
// appends the reply or an error record. Only one exchange runs at a time;
// a Send while busy is rejected, not queued.
//
// Failures never propagate past Send. They are recorded in LastError and
// as an error-flagged assistant message in the session.
package chat
