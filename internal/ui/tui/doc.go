// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the full-screen terminal front end.
//
// The screen has a session sidebar, the transcript of the active session,
// an input box and a status bar. Sends run off the event loop; store and
// orchestrator change callbacks are forwarded into the program so the
// typing placeholder and replies appear as they land.
//
// Usage:
//
//	a, err := app.Load(ctx)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	return tui.Run(ctx, a)
package tui
