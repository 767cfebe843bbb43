// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/orchat/internal/model"
)

// document is the structured export shape shared by JSON and YAML.
type document struct {
	ID           string          `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	Model        string          `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt string          `json:"systemPrompt,omitempty" yaml:"system_prompt,omitempty"`
	Created      time.Time       `json:"created" yaml:"created"`
	LastUpdated  time.Time       `json:"lastUpdated" yaml:"last_updated"`
	Messages     []documentEntry `json:"messages" yaml:"messages"`
}

type documentEntry struct {
	Role      string     `json:"role" yaml:"role"`
	Content   string     `json:"content" yaml:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	IsError   bool       `json:"isError,omitempty" yaml:"is_error,omitempty"`
}

func newDocument(sess *model.ChatSession, opts *Options) document {
	doc := document{
		ID:          sess.ID,
		Title:       sess.Title,
		Model:       opts.Model,
		Created:     createdAt(sess),
		LastUpdated: sess.LastUpdated,
	}
	if opts.IncludeSystem {
		doc.SystemPrompt = sess.SystemPrompt
	}
	for _, m := range visibleMessages(sess, opts) {
		entry := documentEntry{Role: string(m.Role), Content: m.Content, IsError: m.IsError}
		if opts.IncludeTimestamps {
			ts := m.Timestamp
			entry.Timestamp = &ts
		}
		doc.Messages = append(doc.Messages, entry)
	}
	return doc
}

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports sessions to JSON format.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a session to indented JSON.
func (e *JSONExporter) Export(sess *model.ChatSession) ([]byte, error) {
	if err := validate(sess); err != nil {
		return nil, err
	}
	return json.MarshalIndent(newDocument(sess, e.options), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
