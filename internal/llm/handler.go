// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"strings"

	"github.com/jeranaias/llmcli/internal/model"
)

type handlerState uint8

const (
	stateIdle handlerState = iota
	stateThinking
	stateContent
	stateFinished
)

func (s handlerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateThinking:
		return "thinking-open"
	case stateContent:
		return "content-open"
	case stateFinished:
		return "finished"
	}
	return "unknown"
}

// ResponseHandler consumes the events of one response, drives a Renderer and
// accumulates the assistant message.
//
// States run idle -> thinking-open -> content-open -> finished. A thinking
// section is only opened when the model supports thinking and the options
// enable and show it. The first text delta closes an open thinking section.
// Interruption is tracked separately and does not change the state.
type ResponseHandler struct {
	caps     Capabilities
	opts     Options
	renderer Renderer

	state       handlerState
	interrupted bool
	events      int

	text     strings.Builder
	thinking strings.Builder
	tools    []model.Part
	final    *model.Message
}

// NewResponseHandler creates a handler. In silent mode nothing reaches the
// renderer.
func NewResponseHandler(caps Capabilities, opts Options, r Renderer) *ResponseHandler {
	if r == nil || opts.Silent {
		r = discardRenderer{}
	}
	return &ResponseHandler{caps: caps, opts: opts, renderer: r}
}

// HandleEvent applies one event. Events after finish are ignored.
func (h *ResponseHandler) HandleEvent(ev StreamEvent) {
	if h.state == stateFinished {
		return
	}
	h.events++

	switch ev.Kind {
	case EventThinkingDelta:
		h.thinking.WriteString(ev.Delta)
		if !h.opts.ThinkingVisible(h.caps) {
			return
		}
		if h.state != stateThinking {
			h.renderer.BeginThinking()
			h.state = stateThinking
		}
		h.renderer.RenderThinking(ev.Delta)

	case EventTextDelta:
		if h.state == stateThinking {
			h.renderer.EndThinking()
		}
		h.state = stateContent
		h.text.WriteString(ev.Delta)
		h.renderer.RenderText(ev.Delta)

	case EventToolCall:
		h.tools = append(h.tools, model.ToolCallPart(ev.Tool.ID, ev.Tool.Name, ev.Tool.Args))
		if !ev.Tool.Builtin {
			h.renderer.RenderTool(ev.Kind, ev.Tool)
		}

	case EventToolResult:
		h.tools = append(h.tools, model.ToolReturnPart(ev.Tool.ID, ev.Tool.Name, ev.Tool.Content))
		if !ev.Tool.Builtin {
			h.renderer.RenderTool(ev.Kind, ev.Tool)
		}

	case EventEnd:
		h.final = ev.Final
		h.finish()

	default:
		h.events--
	}
}

// MarkInterrupted records that the user cancelled the response.
func (h *ResponseHandler) MarkInterrupted() {
	h.interrupted = true
}

// Interrupted reports whether MarkInterrupted was called.
func (h *ResponseHandler) Interrupted() bool {
	return h.interrupted
}

// Finish closes the response if no End event did. Safe to call twice.
func (h *ResponseHandler) Finish() {
	if h.state != stateFinished {
		h.finish()
	}
}

// Finished reports whether the handler has reached its final state.
func (h *ResponseHandler) Finished() bool {
	return h.state == stateFinished
}

// Started reports whether any event has been handled.
func (h *ResponseHandler) Started() bool {
	return h.events > 0
}

// FullResponse returns the concatenated visible text.
func (h *ResponseHandler) FullResponse() string {
	return h.text.String()
}

// Message assembles the assistant message: thinking, tool parts, then text.
func (h *ResponseHandler) Message() model.Message {
	var parts []model.Part
	if h.thinking.Len() > 0 {
		parts = append(parts, model.ThinkingPart(h.thinking.String()))
	}
	parts = append(parts, h.tools...)
	if h.text.Len() > 0 {
		parts = append(parts, model.TextPart(h.text.String()))
	}
	return model.NewAssistantMessage(parts...)
}

func (h *ResponseHandler) finish() {
	if h.state == stateThinking {
		h.renderer.EndThinking()
	}
	if h.text.Len() == 0 && h.final != nil {
		if text := h.final.Text(); text != "" {
			h.text.WriteString(text)
			h.renderer.RenderText(text)
		}
	}
	h.state = stateFinished
	h.renderer.Finish()
}
