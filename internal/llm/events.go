// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"iter"

	"github.com/jeranaias/llmcli/internal/model"
)

// EventKind discriminates StreamEvent.
type EventKind uint8

const (
	EventTextDelta EventKind = iota + 1
	EventThinkingDelta
	EventToolCall
	EventToolResult
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventThinkingDelta:
		return "thinking_delta"
	case EventToolCall:
		return "tool_call"
	case EventToolResult:
		return "tool_result"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// ToolEvent describes a tool invocation or its result.
type ToolEvent struct {
	ID      string
	Name    string
	Args    string
	Content string

	// Builtin marks provider-side tools (web search and the like) that are
	// recorded but never displayed.
	Builtin bool
}

// StreamEvent is one incremental unit of a provider response. Only the
// fields belonging to Kind are set.
type StreamEvent struct {
	Kind EventKind

	// Delta holds the text for EventTextDelta and EventThinkingDelta.
	Delta string

	// Tool is set for EventToolCall and EventToolResult.
	Tool ToolEvent

	// Final optionally carries the complete response on EventEnd, for
	// providers that buffer instead of streaming deltas.
	Final *model.Message
}

// Stream is the lazy event sequence produced by a provider. Breaking out of
// the range loop releases the underlying connection.
type Stream = iter.Seq2[StreamEvent, error]

// TextDelta returns a visible-text event.
func TextDelta(s string) StreamEvent {
	return StreamEvent{Kind: EventTextDelta, Delta: s}
}

// ThinkingDelta returns a reasoning-trace event.
func ThinkingDelta(s string) StreamEvent {
	return StreamEvent{Kind: EventThinkingDelta, Delta: s}
}

// ToolCall returns a tool invocation event.
func ToolCall(t ToolEvent) StreamEvent {
	return StreamEvent{Kind: EventToolCall, Tool: t}
}

// ToolResult returns a tool result event.
func ToolResult(t ToolEvent) StreamEvent {
	return StreamEvent{Kind: EventToolResult, Tool: t}
}

// End returns the end-of-turn event. final may be nil.
func End(final *model.Message) StreamEvent {
	return StreamEvent{Kind: EventEnd, Final: final}
}

// StreamOf returns a Stream that yields events in order.
func StreamOf(events ...StreamEvent) Stream {
	return func(yield func(StreamEvent, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// ErrorStream returns a Stream that yields events and then err.
func ErrorStream(err error, events ...StreamEvent) Stream {
	return func(yield func(StreamEvent, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
		yield(StreamEvent{}, err)
	}
}
