// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/session"
	"github.com/jeranaias/llmcli/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes one section per turn, headed System, Human or AI.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders chat as Markdown.
func (e *MarkdownExporter) Export(chat *session.Chat) ([]byte, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat is nil")
	}
	messages := chat.Messages()
	if len(messages) == 0 {
		return nil, fmt.Errorf("chat has no messages")
	}

	var sb strings.Builder
	meta := chat.Metadata

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "id: %s\n", meta.ID)
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(meta.Title))
		fmt.Fprintf(&sb, "model: %s\n", escapeYAML(meta.Model))
		fmt.Fprintf(&sb, "created: %s\n", meta.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "updated: %s\n", meta.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "messages: %d\n", meta.MessageCount)
		sb.WriteString("generator: llmcli\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(util.CollapseWhitespace(meta.Title)))

	lastSystem := ""
	for _, msg := range messages {
		if sys := msg.SystemPrompt(); sys != "" && sys != lastSystem {
			e.writeSection(&sb, "System", msg.Timestamp, strings.TrimSpace(sys))
			lastSystem = sys
		}

		switch msg.Role {
		case model.RoleUser:
			e.writeSection(&sb, model.RoleUser.DisplayName(), msg.Timestamp, strings.TrimSpace(msg.Text()))
		case model.RoleAssistant:
			e.writeSection(&sb, model.RoleAssistant.DisplayName(), msg.Timestamp, e.assistantBody(msg))
		}
	}

	return []byte(strings.TrimRight(sb.String(), "\n") + "\n"), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// MimeType returns the Markdown MIME type.
func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func (e *MarkdownExporter) writeSection(sb *strings.Builder, label string, ts time.Time, body string) {
	if e.options.IncludeTimestamps && !ts.IsZero() {
		fmt.Fprintf(sb, "## %s <sub>%s</sub>\n\n", label, formatTimestamp(ts))
	} else {
		fmt.Fprintf(sb, "## %s\n\n", label)
	}
	if body == "" {
		body = "_(no response)_"
	}
	sb.WriteString(body)
	sb.WriteString("\n\n")
}

// assistantBody renders thinking as a quote block, then tool calls, then
// the answer.
func (e *MarkdownExporter) assistantBody(msg model.Message) string {
	var parts []string

	if thinking := strings.TrimSpace(msg.Thinking()); thinking != "" && e.options.IncludeThinking {
		parts = append(parts, quoteBlock("**Thinking**\n\n"+thinking))
	}

	for _, p := range msg.ToolParts() {
		switch p.Kind {
		case model.PartToolCall:
			parts = append(parts, fmt.Sprintf("**Tool call** `%s`\n\n```json\n%s\n```", p.ToolName, p.Args))
		case model.PartToolReturn:
			parts = append(parts, fmt.Sprintf("**Tool result** `%s`\n\n```\n%s\n```", p.ToolName, p.Content))
		}
	}

	if text := strings.TrimSpace(msg.Text()); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

func quoteBlock(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", `\#`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

// escapeYAML quotes values that YAML would otherwise misread.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
		return `"` + r.Replace(s) + `"`
	}
	return s
}
