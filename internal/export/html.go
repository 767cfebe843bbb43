// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/orchat/internal/model"
)

// codeFence matches a fenced block with an optional language tag.
var codeFence = regexp.MustCompile("(?s)```([A-Za-z0-9_+#.-]*)[^\\n]*\\n(.*?)```")

var inlineCode = regexp.MustCompile("`([^`\\n]+)`")

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports sessions to a standalone HTML page with embedded CSS.
// Fenced code blocks are highlighted with inline styles.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a session to HTML format.
func (e *HTMLExporter) Export(sess *model.ChatSession) ([]byte, error) {
	if err := validate(sess); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(sess.Title)))
	sb.WriteString("    <meta name=\"generator\" content=\"orchat\">\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", createdAt(sess).Format(time.RFC3339)))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(sess))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range visibleMessages(sess, e.options) {
		sb.WriteString(e.renderMessage(msg, theme))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>orchat</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(sess *model.ChatSession) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(sess.Title)))
	sb.WriteString("            <div class=\"metadata\">\n")
	if e.options.Model != "" {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(e.options.Model)))
	}
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(createdAt(sess))))
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", sess.MessageCount()))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg model.Message, theme string) string {
	var sb strings.Builder

	class := string(msg.Role) + "-message"
	if msg.IsError {
		class += " error-message"
	}
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s\">\n", class))
	sb.WriteString("                <div class=\"message-header\">\n")
	sb.WriteString(fmt.Sprintf("                    <span class=\"role-label\">%s</span>\n", html.EscapeString(msg.Role.DisplayName())))
	if e.options.IncludeTimestamps {
		sb.WriteString(fmt.Sprintf("                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp)))
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(formatContent(msg.Content, theme))
	sb.WriteString("\n                </div>\n")
	sb.WriteString("            </div>\n")
	return sb.String()
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent renders prose as escaped paragraphs and fenced blocks as
// highlighted code.
func formatContent(content, theme string) string {
	var sb strings.Builder
	last := 0
	for _, m := range codeFence.FindAllStringSubmatchIndex(content, -1) {
		sb.WriteString(formatProse(content[last:m[0]]))
		lang := content[m[2]:m[3]]
		code := strings.TrimRight(content[m[4]:m[5]], "\n")
		sb.WriteString(highlightCode(code, lang, theme))
		last = m[1]
	}
	sb.WriteString(formatProse(content[last:]))
	return sb.String()
}

// formatProse escapes text, marks inline code and wraps paragraphs.
func formatProse(text string) string {
	var out []string
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCode.ReplaceAllString(escaped, "<code class=\"inline-code\">$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		out = append(out, "<p>"+escaped+"</p>")
	}
	return strings.Join(out, "\n")
}

// highlightCode renders code with chroma. Unknown languages are detected
// from the content, falling back to plain text.
func highlightCode(code, lang, theme string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if theme == "light" {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	label := ""
	if lang != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>", label, html.EscapeString(code))
	}
	var sb strings.Builder
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>", label, html.EscapeString(code))
	}
	return fmt.Sprintf("<div class=\"code-block\">%s%s</div>", label, sb.String())
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            --font-mono: "SF Mono", Menlo, Consolas, monospace;
        }
        .dark-theme { --bg: #16181d; --panel: #1f2229; --text: #e6e6e6; --muted: #8b919c; --user: #2b3a55; --assistant: #23272f; --system: #2a2a1f; --error: #4a2025; --border: #30343d; }
        .light-theme { --bg: #f5f6f8; --panel: #ffffff; --text: #1d1f23; --muted: #6b7280; --user: #e3ecfb; --assistant: #ffffff; --system: #fbf7e3; --error: #fde8e8; --border: #e1e4e8; }
        body { background: var(--bg); color: var(--text); font-family: var(--font-sans); line-height: 1.6; padding: 24px; }
        .container { max-width: 880px; margin: 0 auto; }
        .header, .footer { background: var(--panel); border: 1px solid var(--border); border-radius: 10px; padding: 20px 24px; margin-bottom: 16px; }
        .header h1 { font-size: 1.5rem; margin-bottom: 8px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; color: var(--muted); font-size: 0.9rem; }
        .message { border: 1px solid var(--border); border-radius: 10px; padding: 16px 20px; margin-bottom: 12px; }
        .user-message { background: var(--user); }
        .assistant-message { background: var(--assistant); }
        .system-message { background: var(--system); font-style: italic; }
        .error-message { background: var(--error); }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 8px; font-size: 0.85rem; color: var(--muted); }
        .role-label { font-weight: 600; }
        .message-content p { margin-bottom: 8px; }
        .code-block { margin: 8px 0; border-radius: 6px; overflow-x: auto; }
        .code-block pre { padding: 12px; font-family: var(--font-mono); font-size: 0.9rem; }
        .code-lang { font-size: 0.75rem; color: var(--muted); padding: 4px 12px 0; }
        .inline-code { font-family: var(--font-mono); background: var(--border); padding: 1px 4px; border-radius: 4px; }
        .footer { text-align: center; color: var(--muted); font-size: 0.85rem; }
        @media print { body { padding: 0; } .message { page-break-inside: avoid; } }
    </style>
`
