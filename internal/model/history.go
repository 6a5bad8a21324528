// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
)

// Turn is a flattened (role, content) pair used for display and titles.
type Turn struct {
	Role    Role
	Content string
}

// LegacyMessage is the flat message shape written by older versions.
type LegacyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Flatten reduces messages to the user and assistant turns a reader would
// see. System prompts, thinking and tool parts are dropped, as are assistant
// turns without text.
func Flatten(messages []Message) []Turn {
	history := make([]Turn, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			for _, p := range m.Parts {
				if p.Kind == PartUserPrompt && p.Content != "" {
					history = append(history, Turn{Role: RoleUser, Content: p.Content})
				}
			}
		case RoleAssistant:
			if text := m.Text(); text != "" {
				history = append(history, Turn{Role: RoleAssistant, Content: text})
			}
		}
	}
	return history
}

// CountNonSystem counts the turns that appear in the transcript.
func CountNonSystem(messages []Message) int {
	return len(Flatten(messages))
}

// LatestSystemPrompt returns the last system prompt seen in messages.
func LatestSystemPrompt(messages []Message) string {
	last := ""
	for _, m := range messages {
		for _, p := range m.Parts {
			if p.Kind == PartSystemPrompt {
				last = p.Content
			}
		}
	}
	return last
}

// BuildPrompt returns a single-turn request with optional instructions.
func BuildPrompt(systemPrompt, userPrompt string) []Message {
	return []Message{NewUserMessage(userPrompt, systemPrompt)}
}

// ConvertLegacy upgrades flat {role, content} messages. A system message is
// held and bound to the next user message; one with no following user
// message is dropped.
func ConvertLegacy(legacy []LegacyMessage) []Message {
	result := make([]Message, 0, len(legacy))
	pending := ""
	hasPending := false

	for _, lm := range legacy {
		switch Role(lm.Role) {
		case RoleSystem:
			pending, hasPending = lm.Content, true
		case RoleUser:
			parts := make([]Part, 0, 2)
			if hasPending {
				parts = append(parts, Part{Kind: PartSystemPrompt, Content: pending})
				pending, hasPending = "", false
			}
			parts = append(parts, Part{Kind: PartUserPrompt, Content: lm.Content})
			result = append(result, Message{Role: RoleUser, Parts: parts})
		case RoleAssistant:
			var parts []Part
			if lm.Content != "" {
				parts = append(parts, TextPart(lm.Content))
			}
			result = append(result, Message{Role: RoleAssistant, Parts: parts})
		}
	}
	return result
}

// DecodeMessages parses a persisted message log. The structured format is
// recognized by a "kind" field on the first entry; anything else is read as
// the legacy flat format and upgraded. The second result reports whether the
// legacy path was taken.
func DecodeMessages(data []byte) ([]Message, bool, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("invalid message log: %w", err)
	}
	if len(raw) == 0 {
		return []Message{}, false, nil
	}

	if _, structured := raw[0]["kind"]; structured {
		var msgs []Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, false, fmt.Errorf("invalid message log: %w", err)
		}
		return msgs, false, nil
	}

	var legacy []LegacyMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, true, fmt.Errorf("invalid legacy message log: %w", err)
	}
	return ConvertLegacy(legacy), true, nil
}
