// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat orchestrator over HTTP.
//
// A small embedded page at / drives the JSON API:
//
//   - GET    /health                         - Health check
//   - GET    /api/state                      - Snapshot of sessions, busy flag, last error, model and settings
//   - GET    /api/models                     - Built-in and remote model catalog
//   - PUT    /api/model                      - Select the model {"model"}
//   - PUT    /api/settings                   - Replace settings (validated)
//   - POST   /api/sessions                   - Create a session {"systemPrompt"?}
//   - PATCH  /api/sessions/{id}              - Rename {"title"}
//   - DELETE /api/sessions/{id}              - Delete
//   - POST   /api/sessions/{id}/select       - Make active
//   - POST   /api/sessions/{id}/clear        - Reset to the system prompt
//   - POST   /api/sessions/{id}/messages     - Send {"text"}; blocks until the reply
//
// Mutating routes answer with the new snapshot. A send that was not run
// carries "rejected" (empty, no_session, busy) alongside it.
//
// Every request passes through recovery, request ID, security headers,
// logging and, when configured, per-client rate limiting.
//
// # Usage
//
//	srv := server.New(app.Chat, app.Client).
//		WithAddr(cfg.Server.Addr).
//		WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
