// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/jeranaias/llmcli/internal/ui/styles"
	"github.com/jeranaias/llmcli/internal/util"
)

// Renderer receives the display side of a streamed response. The
// ResponseHandler guarantees BeginThinking and EndThinking are paired and
// that Finish is called once.
type Renderer interface {
	RenderText(s string)
	RenderThinking(s string)
	RenderTool(kind EventKind, tool ToolEvent)
	BeginThinking()
	EndThinking()
	Finish()
}

// RendererKind selects a Renderer implementation.
type RendererKind string

const (
	RendererPlain  RendererKind = "plain"
	RendererStyled RendererKind = "styled"
)

// NewRenderer returns the renderer for kind writing to w. Unknown kinds get
// the plain renderer.
func NewRenderer(kind RendererKind, w io.Writer) Renderer {
	if kind == RendererStyled {
		return NewStyledRenderer(w)
	}
	return NewPlainRenderer(w)
}

const toolPreviewWidth = 120

// =============================================================================
// PLAIN RENDERER
// =============================================================================

// PlainRenderer writes undecorated text, suitable for pipes and dumb
// terminals. Thinking is wrapped in <thinking> tags.
type PlainRenderer struct {
	w io.Writer
}

// NewPlainRenderer creates a plain renderer.
func NewPlainRenderer(w io.Writer) *PlainRenderer {
	return &PlainRenderer{w: w}
}

func (r *PlainRenderer) RenderText(s string)     { io.WriteString(r.w, s) }
func (r *PlainRenderer) RenderThinking(s string) { io.WriteString(r.w, s) }
func (r *PlainRenderer) BeginThinking()          { io.WriteString(r.w, "<thinking>\n") }
func (r *PlainRenderer) EndThinking()            { io.WriteString(r.w, "\n</thinking>\n\n") }
func (r *PlainRenderer) Finish()                 { io.WriteString(r.w, "\n") }

func (r *PlainRenderer) RenderTool(kind EventKind, tool ToolEvent) {
	switch kind {
	case EventToolCall:
		fmt.Fprintf(r.w, "\n[tool] %s(%s)\n", tool.Name, util.TruncateWidth(tool.Args, toolPreviewWidth))
	case EventToolResult:
		fmt.Fprintf(r.w, "[tool result] %s: %s\n", tool.Name, util.TruncateWidth(util.CollapseWhitespace(tool.Content), toolPreviewWidth))
	}
}

// =============================================================================
// STYLED RENDERER
// =============================================================================

// StyledRenderer decorates the thinking section and tool annotations with
// the shared palette. Streamed chunks are colored with termenv so partial
// lines are never padded.
type StyledRenderer struct {
	w        io.Writer
	out      *termenv.Output
	thinking termenv.Color
}

// NewStyledRenderer creates a styled renderer. Color support is detected
// from w; a non-terminal writer gets no escape sequences.
func NewStyledRenderer(w io.Writer) *StyledRenderer {
	out := termenv.NewOutput(w)
	dark := true
	if out.Profile != termenv.Ascii {
		dark = out.HasDarkBackground()
	}
	return &StyledRenderer{
		w:        w,
		out:      out,
		thinking: out.Color(styles.Hex(styles.TextMuted, dark)),
	}
}

func (r *StyledRenderer) RenderText(s string) {
	io.WriteString(r.w, s)
}

func (r *StyledRenderer) RenderThinking(s string) {
	io.WriteString(r.w, r.out.String(s).Foreground(r.thinking).Italic().String())
}

func (r *StyledRenderer) BeginThinking() {
	io.WriteString(r.w, "\n"+styles.ThinkingHeader.Render("Thinking...")+"\n")
}

func (r *StyledRenderer) EndThinking() {
	io.WriteString(r.w, "\n"+styles.Rule(40)+"\n\n")
}

func (r *StyledRenderer) Finish() {
	io.WriteString(r.w, "\n")
}

func (r *StyledRenderer) RenderTool(kind EventKind, tool ToolEvent) {
	switch kind {
	case EventToolCall:
		line := fmt.Sprintf("⚙ %s(%s)", tool.Name, util.TruncateWidth(tool.Args, toolPreviewWidth))
		io.WriteString(r.w, "\n"+styles.ToolCall.Render(line)+"\n")
	case EventToolResult:
		content := util.TruncateWidth(util.CollapseWhitespace(tool.Content), toolPreviewWidth)
		line := fmt.Sprintf("↳ %s: %s", tool.Name, content)
		io.WriteString(r.w, styles.ToolResult.Render(strings.TrimSpace(line))+"\n")
	}
}

// =============================================================================
// DISCARD RENDERER
// =============================================================================

type discardRenderer struct{}

func (discardRenderer) RenderText(string)               {}
func (discardRenderer) RenderThinking(string)           {}
func (discardRenderer) RenderTool(EventKind, ToolEvent) {}
func (discardRenderer) BeginThinking()                  {}
func (discardRenderer) EndThinking()                    {}
func (discardRenderer) Finish()                         {}
