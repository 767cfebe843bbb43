// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across orchat.
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth: terminal-column aware layout (go-runewidth)
//   - OneLine: whitespace collapsing for single-line previews
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util
