// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat sessions as Markdown, JSON, YAML or HTML.
//
// Transient placeholders are never exported. Error records are kept and
// marked. HTML output highlights fenced code blocks.
//
// # Usage
//
//	exp, err := export.New("md", export.DefaultOptions())
//	path, err := export.ExportToFile(sess, exp, opts)
package export
