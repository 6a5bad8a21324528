// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"math"

	"github.com/jeranaias/llmcli/internal/model"
)

// conversation reduces messages to the latest system prompt and the visible
// user/assistant turns. Adjacent turns with the same role are merged so
// providers that require alternation accept an interrupted history.
func conversation(messages []model.Message) (string, []model.Turn) {
	system := model.LatestSystemPrompt(messages)

	var turns []model.Turn
	for _, t := range model.Flatten(messages) {
		if n := len(turns); n > 0 && turns[n-1].Role == t.Role {
			turns[n-1].Content += "\n\n" + t.Content
			continue
		}
		turns = append(turns, t)
	}
	return system, turns
}

// chatMessage is the {role, content} shape shared by the OpenAI-style and
// Anthropic APIs.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatMessages renders turns with the system prompt first when inline is set.
func chatMessages(system string, turns []model.Turn, inline bool) []chatMessage {
	out := make([]chatMessage, 0, len(turns)+1)
	if inline && system != "" {
		out = append(out, chatMessage{Role: string(model.RoleSystem), Content: system})
	}
	for _, t := range turns {
		out = append(out, chatMessage{Role: string(t.Role), Content: t.Content})
	}
	return out
}

// mergeSettings copies overrides into payload, replacing existing keys.
func mergeSettings(payload map[string]any, overrides ...map[string]any) {
	for _, o := range overrides {
		for k, v := range o {
			payload[k] = v
		}
	}
}

// floatSetting reads a numeric override such as temperature. Config
// decoders produce int64, int or float64 depending on the literal.
func floatSetting(settings map[string]any, key string) (float64, bool) {
	switch v := settings[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// intSetting is floatSetting for integral fields.
func intSetting(settings map[string]any, key string) (int, bool) {
	f, ok := floatSetting(settings, key)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}
