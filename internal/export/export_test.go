// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/orchat/internal/model"
)

func sampleSession() *model.ChatSession {
	sess := model.NewChatSession("You are a helpful assistant.")
	sess.Title = "Go: <generics> & more"
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sess.Messages[0].Timestamp = base

	user := model.NewUserMessage("Show me a map literal")
	user.Timestamp = base.Add(time.Minute)
	reply := model.NewAssistantMessage("Here you go:\n\n```go\nm := map[string]int{\"a\": 1}\n```\n\nUse `len(m)` for size.")
	reply.Timestamp = base.Add(2 * time.Minute)
	failed := model.NewErrorMessage()
	failed.Timestamp = base.Add(3 * time.Minute)

	sess.Messages = append(sess.Messages, user, reply, failed, model.NewTransientMessage())
	sess.LastUpdated = base.Add(3 * time.Minute)
	return sess
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"markdown", ".md"},
		{"md", ".md"},
		{"json", ".json"},
		{"YAML", ".yaml"},
		{".yml", ".yaml"},
		{"html", ".html"},
	}
	for _, tc := range tests {
		exp, err := New(tc.format, nil)
		if err != nil {
			t.Errorf("New(%q) error = %v", tc.format, err)
			continue
		}
		if exp.FileExtension() != tc.ext {
			t.Errorf("New(%q).FileExtension() = %q, want %q", tc.format, exp.FileExtension(), tc.ext)
		}
	}
	if _, err := New("pdf", nil); err == nil {
		t.Error("New(pdf) should fail")
	}
}

func TestExporters_RejectEmpty(t *testing.T) {
	for _, format := range Formats {
		exp, _ := New(format, nil)
		if _, err := exp.Export(nil); err == nil {
			t.Errorf("%s: Export(nil) should fail", format)
		}
		if _, err := exp.Export(&model.ChatSession{ID: "1"}); err == nil {
			t.Errorf("%s: Export(empty) should fail", format)
		}
	}
}

func TestExporters_OmitTransient(t *testing.T) {
	for _, format := range Formats {
		exp, _ := New(format, nil)
		out, err := exp.Export(sampleSession())
		if err != nil {
			t.Fatalf("%s: Export() error = %v", format, err)
		}
		if bytes.Contains(out, []byte(model.TransientContent+"\n")) || bytes.Contains(out, []byte(`"..."`)) {
			t.Errorf("%s: transient placeholder leaked into export", format)
		}
	}
}

func TestMarkdownExporter(t *testing.T) {
	opts := DefaultOptions()
	opts.Model = "deepseek/deepseek-r1:free"
	out, err := NewMarkdownExporter(opts).Export(sampleSession())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	s := string(out)

	for _, want := range []string{
		"---\ntitle: \"Go: <generics> & more\"\n",
		"model: deepseek/deepseek-r1:free\n",
		"messages: 3\n",
		"# Go: <generics> & more",
		"### [System]",
		"> You are a helpful assistant.",
		"### [You] <sub>10:01:00</sub>",
		"```go\nm := map[string]int{\"a\": 1}\n```",
		"### [Assistant] (error)",
		model.ErrorReply,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("markdown missing %q\n%s", want, s)
		}
	}
}

func TestMarkdownExporter_WithoutSystemOrMetadata(t *testing.T) {
	opts := &Options{IncludeSystem: false, IncludeMetadata: false}
	out, err := NewMarkdownExporter(opts).Export(sampleSession())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	s := string(out)
	if strings.Contains(s, "[System]") || strings.HasPrefix(s, "---") {
		t.Errorf("unexpected system prompt or frontmatter:\n%s", s)
	}
	if strings.Contains(s, "<sub>") {
		t.Error("timestamps should be omitted")
	}
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleSession())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(doc.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4", len(doc.Messages))
	}
	if doc.Messages[0].Role != "system" || !doc.Messages[3].IsError {
		t.Errorf("unexpected messages: %+v", doc.Messages)
	}
	if doc.SystemPrompt != "You are a helpful assistant." {
		t.Errorf("SystemPrompt = %q", doc.SystemPrompt)
	}
}

func TestYAMLExporter_LiteralBlocks(t *testing.T) {
	out, err := NewYAMLExporter(nil).Export(sampleSession())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(out), "content: |") {
		t.Errorf("multi-line content should use a literal block:\n%s", out)
	}

	var doc document
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if doc.Title != "Go: <generics> & more" {
		t.Errorf("Title = %q", doc.Title)
	}
	if !strings.Contains(doc.Messages[2].Content, "map[string]int") {
		t.Errorf("content lost: %q", doc.Messages[2].Content)
	}
}

func TestHTMLExporter(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "light"
	out, err := NewHTMLExporter(opts).Export(sampleSession())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	s := string(out)

	for _, want := range []string{
		"<title>Go: &lt;generics&gt; &amp; more</title>",
		"<body class=\"light-theme\">",
		"<div class=\"code-lang\">go</div>",
		"<code class=\"inline-code\">len(m)</code>",
		"assistant-message error-message",
		"<pre",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(s, "<generics>") {
		t.Error("title was not escaped")
	}
	// Highlighted output splits the code into styled spans.
	if !strings.Contains(s, "style=") {
		t.Error("code block was not highlighted")
	}
}

func TestFormatContent_EscapesProse(t *testing.T) {
	got := formatContent("<script>alert(1)</script>", "dark")
	if strings.Contains(got, "<script>") {
		t.Errorf("prose not escaped: %s", got)
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(dir, "out")

	path, err := ExportToFile(sampleSession(), NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}
	if filepath.Ext(path) != ".md" {
		t.Errorf("path = %q", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "chat_Go-_-generics-_&_more_") {
		t.Errorf("unexpected filename %q", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"New Chat", "New_Chat"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "chat"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleSession(), NewJSONExporter(nil)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Error("Write produced invalid JSON")
	}
}
