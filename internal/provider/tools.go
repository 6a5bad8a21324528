// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jeranaias/llmcli/internal/llm"
)

// toolBuilder accumulates one streamed tool call.
type toolBuilder struct {
	id      string
	name    string
	builtin bool
	args    strings.Builder
}

// toolCalls collects tool call deltas keyed by their stream index, keeping
// first-seen order.
type toolCalls struct {
	order    []int
	builders map[int]*toolBuilder
}

func (tc *toolCalls) get(index int) *toolBuilder {
	if tc.builders == nil {
		tc.builders = map[int]*toolBuilder{}
	}
	b, ok := tc.builders[index]
	if !ok {
		b = &toolBuilder{}
		tc.builders[index] = b
		tc.order = append(tc.order, index)
	}
	return b
}

// add merges a delta. Empty fields leave earlier values alone.
func (tc *toolCalls) add(index int, id, name, args string) {
	b := tc.get(index)
	if id != "" {
		b.id = id
	}
	if name != "" {
		b.name = name
	}
	b.args.WriteString(args)
}

// take removes the builder at index and returns its event.
func (tc *toolCalls) take(index int) (llm.ToolEvent, bool) {
	b, ok := tc.builders[index]
	if !ok {
		return llm.ToolEvent{}, false
	}
	delete(tc.builders, index)
	for i, idx := range tc.order {
		if idx == index {
			tc.order = append(tc.order[:i], tc.order[i+1:]...)
			break
		}
	}
	return b.event(), true
}

// drain returns every pending call in order and resets the collector.
func (tc *toolCalls) drain() []llm.ToolEvent {
	out := make([]llm.ToolEvent, 0, len(tc.order))
	for _, idx := range tc.order {
		out = append(out, tc.builders[idx].event())
	}
	tc.order = nil
	tc.builders = nil
	return out
}

func (b *toolBuilder) event() llm.ToolEvent {
	return llm.ToolEvent{
		ID:      b.id,
		Name:    b.name,
		Args:    repairArgs(b.args.String()),
		Builtin: b.builtin,
	}
}

// repairArgs normalizes streamed tool arguments to valid JSON. Models
// sometimes emit truncated or loosely quoted objects; those are repaired,
// and anything beyond repair is returned unchanged.
func repairArgs(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}"
	}
	if json.Valid([]byte(raw)) {
		return raw
	}
	fixed, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return raw
	}
	return fixed
}
