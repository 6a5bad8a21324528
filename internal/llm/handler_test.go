// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llmcli/internal/model"
)

// recordingRenderer logs every call for assertions.
type recordingRenderer struct {
	calls []string
}

func (r *recordingRenderer) RenderText(s string)     { r.calls = append(r.calls, "text:"+s) }
func (r *recordingRenderer) RenderThinking(s string) { r.calls = append(r.calls, "think:"+s) }
func (r *recordingRenderer) BeginThinking()          { r.calls = append(r.calls, "begin") }
func (r *recordingRenderer) EndThinking()            { r.calls = append(r.calls, "end") }
func (r *recordingRenderer) Finish()                 { r.calls = append(r.calls, "finish") }
func (r *recordingRenderer) RenderTool(kind EventKind, tool ToolEvent) {
	r.calls = append(r.calls, kind.String()+":"+tool.Name)
}

func (r *recordingRenderer) count(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recordingRenderer) index(call string) int {
	for i, c := range r.calls {
		if c == call {
			return i
		}
	}
	return -1
}

var thinkingCaps = Capabilities{SupportsThinking: true}

func feed(h *ResponseHandler, events ...StreamEvent) {
	for _, ev := range events {
		h.HandleEvent(ev)
	}
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestHandler_ThinkingThenText(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), r)

	feed(h,
		ThinkingDelta("reasoning..."),
		TextDelta("The "),
		TextDelta("answer."),
		End(nil),
	)

	assert.Equal(t, "The answer.", h.FullResponse())
	assert.Equal(t, 1, r.count("begin"))
	assert.Equal(t, 1, r.count("end"))
	assert.Less(t, r.index("end"), r.index("text:The "), "thinking closes before visible text")
	assert.Equal(t, []string{
		"begin", "think:reasoning...", "end", "text:The ", "text:answer.", "finish",
	}, r.calls)
	assert.True(t, h.Finished())
}

func TestHandler_TextOnlyNeverOpensThinking(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), r)

	feed(h, TextDelta("Hi"), End(nil))

	assert.Zero(t, r.count("begin"))
	assert.Zero(t, r.count("end"))
	assert.Equal(t, "Hi", h.FullResponse())
}

func TestHandler_ThinkingHiddenUnlessAllowed(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		opts Options
	}{
		{"unsupported", Capabilities{}, DefaultOptions()},
		{"disabled", thinkingCaps, Options{EnableThinking: false, ShowThinking: true}},
		{"hidden", thinkingCaps, Options{EnableThinking: true, ShowThinking: false}},
		{"silent", thinkingCaps, Options{EnableThinking: true, ShowThinking: true, Silent: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingRenderer{}
			h := NewResponseHandler(tt.caps, tt.opts, r)
			feed(h, ThinkingDelta("hmm"), TextDelta("ok"), End(nil))

			assert.Zero(t, r.count("begin"))
			assert.Zero(t, r.count("think:hmm"))
			assert.Equal(t, "ok", h.FullResponse())
			assert.Equal(t, "hmm", h.Message().Thinking(), "thinking is still recorded")
		})
	}
}

func TestHandler_EndForceClosesThinking(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), r)

	feed(h, ThinkingDelta("still thinking"), End(nil))

	assert.Equal(t, []string{"begin", "think:still thinking", "end", "finish"}, r.calls)
	assert.Empty(t, h.FullResponse())
}

func TestHandler_FullResponseIgnoresInterleavedEvents(t *testing.T) {
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), &recordingRenderer{})

	feed(h,
		ThinkingDelta("a"),
		TextDelta("one "),
		ToolCall(ToolEvent{Name: "lookup", Args: "{}"}),
		ThinkingDelta("b"),
		ToolResult(ToolEvent{Name: "lookup", Content: "found"}),
		TextDelta("two "),
		TextDelta("three"),
		End(nil),
	)

	assert.Equal(t, "one two three", h.FullResponse())
}

func TestHandler_ThinkingAfterTextReopensSection(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), r)

	feed(h,
		ThinkingDelta("x"),
		TextDelta("a"),
		ThinkingDelta("y"),
		TextDelta("c"),
		End(nil),
	)

	assert.Equal(t, 2, r.count("begin"))
	assert.Equal(t, 2, r.count("end"))
	assert.Equal(t, "ac", h.FullResponse())
}

func TestHandler_SingleThinkingSegmentAfterText(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), r)

	feed(h, TextDelta("a"), ThinkingDelta("b"), TextDelta("c"), End(nil))

	assert.Equal(t, 1, r.count("begin"))
	assert.Equal(t, 1, r.count("end"))
	assert.Equal(t, "ac", h.FullResponse())
}

func TestHandler_BuiltinToolsSuppressed(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(Capabilities{}, DefaultOptions(), r)

	feed(h,
		ToolCall(ToolEvent{Name: "web_search", Builtin: true}),
		ToolResult(ToolEvent{Name: "web_search", Builtin: true}),
		ToolCall(ToolEvent{ID: "t1", Name: "calc", Args: `{"x":1}`}),
		TextDelta("done"),
		End(nil),
	)

	assert.Zero(t, r.count("tool_call:web_search"))
	assert.Zero(t, r.count("tool_result:web_search"))
	assert.Equal(t, 1, r.count("tool_call:calc"))

	msg := h.Message()
	assert.Len(t, msg.ToolParts(), 3, "builtin tools are recorded, only hidden")
}

func TestHandler_FinalFallback(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(Capabilities{}, DefaultOptions(), r)

	final := model.NewAssistantMessage(model.TextPart("buffered "), model.TextPart("answer"))
	feed(h, End(&final))

	assert.Equal(t, "buffered answer", h.FullResponse())
	assert.Equal(t, 1, r.count("text:buffered answer"))
}

func TestHandler_FinalIgnoredWhenTextStreamed(t *testing.T) {
	h := NewResponseHandler(Capabilities{}, DefaultOptions(), &recordingRenderer{})

	final := model.NewAssistantText("other")
	feed(h, TextDelta("streamed"), End(&final))

	assert.Equal(t, "streamed", h.FullResponse())
}

func TestHandler_EventsAfterFinishIgnored(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(Capabilities{}, DefaultOptions(), r)

	feed(h, TextDelta("a"), End(nil), TextDelta("b"), End(nil))
	h.Finish()

	assert.Equal(t, "a", h.FullResponse())
	assert.Equal(t, 1, r.count("finish"))
}

func TestHandler_SilentAccumulatesWithoutRendering(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(thinkingCaps, SilentOptions(), r)

	feed(h, TextDelta("Short "), TextDelta("Title"), End(nil))

	assert.Empty(t, r.calls)
	assert.Equal(t, "Short Title", h.FullResponse())
}

func TestHandler_InterruptKeepsPartial(t *testing.T) {
	r := &recordingRenderer{}
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), r)

	feed(h, ThinkingDelta("t"), TextDelta("partial"))
	h.MarkInterrupted()
	h.Finish()

	assert.True(t, h.Interrupted())
	assert.Equal(t, "partial", h.FullResponse())
	assert.Equal(t, "finish", r.calls[len(r.calls)-1])
}

func TestHandler_MessageParts(t *testing.T) {
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), nil)
	feed(h, ThinkingDelta("why"), TextDelta("because"), End(nil))

	msg := h.Message()
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, model.PartThinking, msg.Parts[0].Kind)
	assert.Equal(t, "because", msg.Text())
}

// =============================================================================
// RENDERERS
// =============================================================================

func TestPlainRenderer(t *testing.T) {
	var sb strings.Builder
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), NewPlainRenderer(&sb))

	feed(h,
		ThinkingDelta("hmm"),
		TextDelta("Answer"),
		ToolCall(ToolEvent{Name: "calc", Args: `{"a":1}`}),
		End(nil),
	)

	assert.Equal(t, "<thinking>\nhmm\n</thinking>\n\nAnswer\n[tool] calc({\"a\":1})\n\n", sb.String())
}

func TestStyledRenderer_NonTerminalWriter(t *testing.T) {
	var sb strings.Builder
	h := NewResponseHandler(thinkingCaps, DefaultOptions(), NewStyledRenderer(&sb))

	feed(h, ThinkingDelta("hmm"), TextDelta("Answer"), End(nil))

	out := sb.String()
	assert.Contains(t, out, "Thinking...")
	assert.Contains(t, out, "hmm")
	assert.Contains(t, out, "Answer")
	assert.Less(t, strings.Index(out, "hmm"), strings.Index(out, "Answer"))
}

func TestNewRenderer(t *testing.T) {
	var sb strings.Builder
	assert.IsType(t, &StyledRenderer{}, NewRenderer(RendererStyled, &sb))
	assert.IsType(t, &PlainRenderer{}, NewRenderer(RendererPlain, &sb))
	assert.IsType(t, &PlainRenderer{}, NewRenderer("other", &sb))
}
