// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the orchat command tree.
//
// Every front end shares one App (storage, session store, orchestrator), so
// a session started in "orchat chat" shows up in "orchat tui" and in the
// browser UI served by "orchat serve".
//
// # Usage
//
//	func main() {
//	    cli.Execute()
//	}
//
// # Commands
//
//   - chat: line REPL with history and slash commands, or a one-shot send
//   - tui: full-screen bubbletea UI with a session sidebar
//   - serve: HTTP server for the browser UI and JSON API
//   - sessions: list, show, new, rename, delete
//   - export: Markdown, JSON, YAML or HTML export
//   - models: list models and select the default
//   - config: show, path, init, get, set, keys
//
// Commands that print data accept --json and write a JSONResponse envelope.
// Failures map to the Exit* codes through GetExitCode.
package cli
