// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jeranaias/llmcli/internal/cloud"
	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/model"
)

const (
	anthropicVersion = "2023-06-01"

	// anthropicDefaultMaxTokens is sent when the model table has no limit;
	// the Messages API requires one.
	anthropicDefaultMaxTokens = 4096

	// minThinkingBudget is the smallest budget the API accepts.
	minThinkingBudget = 1024

	// overloadedStatus is Anthropic's non-standard "overloaded" status.
	overloadedStatus = 529
)

// webSearchTool is Anthropic's server-side search tool.
var webSearchTool = map[string]any{"type": "web_search_20250305", "name": "web_search"}

// AnthropicProvider speaks the Messages API.
type AnthropicProvider struct {
	base
	transport *cloud.Transport
}

func newAnthropic(cfg Config) (*AnthropicProvider, error) {
	key, err := cfg.APIKey(Anthropic)
	if err != nil {
		return nil, err
	}
	return &AnthropicProvider{
		base: newBase(Anthropic, cfg),
		transport: cloud.NewTransport(Anthropic, cfg.BaseURL(Anthropic),
			cloud.WithHTTPClient(cfg.httpClient()),
			cloud.WithHeader("x-api-key", key),
			cloud.WithHeader("anthropic-version", anthropicVersion),
		),
	}, nil
}

func (p *AnthropicProvider) payload(messages []model.Message, modelID string, opts llm.Options) map[string]any {
	system, turns := conversation(messages)
	caps := p.Capabilities(modelID)

	maxTokens := caps.MaxTokens
	if n, ok := intSetting(opts.Settings, "max_tokens"); ok {
		maxTokens = n
	}
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	payload := map[string]any{
		"model":      modelID,
		"max_tokens": maxTokens,
		"messages":   chatMessages("", turns, false),
		"stream":     true,
	}
	if system != "" {
		payload["system"] = system
	}
	if opts.EnableSearch {
		payload["tools"] = []map[string]any{webSearchTool}
	}
	mergeSettings(payload, caps.ExtraParams, opts.Settings)
	payload["max_tokens"] = maxTokens

	if caps.SupportsThinking && opts.EnableThinking {
		if budget := thinkingBudget(maxTokens); budget > 0 {
			payload["thinking"] = map[string]any{"type": "enabled", "budget_tokens": budget}
			// Extended thinking rejects any temperature other than 1.
			delete(payload, "temperature")
		}
	}
	return payload
}

// thinkingBudget returns half of maxTokens, or zero when that would fall
// under the API minimum.
func thinkingBudget(maxTokens int) int {
	budget := maxTokens / 2
	if budget < minThinkingBudget {
		return 0
	}
	return budget
}

// anthropicEvent covers every event type on the Messages stream.
type anthropicEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Name    string          `json:"name"`
		Input   json.RawMessage `json:"input"`
		Content json.RawMessage `json:"content"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Thinking    string `json:"thinking"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream posts to /messages and walks the block lifecycle.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []model.Message, modelID string, opts llm.Options) (llm.Stream, error) {
	p.log.Debug().Str("model", modelID).Msg("opening stream")

	resp, err := p.transport.Post(ctx, "/messages", p.payload(messages, modelID, opts))
	if err != nil {
		return nil, err
	}

	return func(yield func(llm.StreamEvent, error) bool) {
		var calls toolCalls
		for sse, err := range cloud.Events(resp) {
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				} else {
					err = &llm.ProviderError{Provider: p.name, Err: errors.Wrap(err, "stream read failed")}
				}
				yield(llm.StreamEvent{}, err)
				return
			}

			var ev anthropicEvent
			if err := json.Unmarshal(sse.Data, &ev); err != nil {
				p.log.Debug().Err(err).Str("event", sse.Type).Msg("skipping malformed event")
				continue
			}

			switch ev.Type {
			case "content_block_start":
				if ev.ContentBlock == nil {
					continue
				}
				block := ev.ContentBlock
				switch block.Type {
				case "tool_use", "server_tool_use":
					calls.add(ev.Index, block.ID, block.Name, "")
					calls.get(ev.Index).builtin = block.Type == "server_tool_use"
				case "web_search_tool_result":
					result := llm.ToolResult(llm.ToolEvent{
						ID:      block.ID,
						Name:    "web_search",
						Content: string(block.Content),
						Builtin: true,
					})
					if !yield(result, nil) {
						return
					}
				}

			case "content_block_delta":
				if ev.Delta == nil {
					continue
				}
				var out llm.StreamEvent
				switch ev.Delta.Type {
				case "text_delta":
					out = llm.TextDelta(ev.Delta.Text)
				case "thinking_delta":
					out = llm.ThinkingDelta(ev.Delta.Thinking)
				case "input_json_delta":
					calls.add(ev.Index, "", "", ev.Delta.PartialJSON)
					continue
				default:
					// signature_delta and future types carry nothing to show.
					continue
				}
				if out.Delta != "" && !yield(out, nil) {
					return
				}

			case "content_block_stop":
				if call, ok := calls.take(ev.Index); ok {
					if !yield(llm.ToolCall(call), nil) {
						return
					}
				}

			case "message_stop":
				yield(llm.End(nil), nil)
				return

			case "error":
				yield(llm.StreamEvent{}, p.eventError(ev))
				return
			}
		}

		// A body that closes without message_stop is a dropped connection,
		// not a complete answer.
		if ctx.Err() != nil {
			yield(llm.StreamEvent{}, ctx.Err())
			return
		}
		yield(llm.StreamEvent{}, llm.NewProviderError(p.name, 0, "stream ended before message_stop"))
	}, nil
}

func (p *AnthropicProvider) eventError(ev anthropicEvent) error {
	if ev.Error == nil {
		return llm.NewProviderError(p.name, 0, "unknown stream error")
	}
	status := 0
	switch ev.Error.Type {
	case "overloaded_error":
		status = overloadedStatus
	case "rate_limit_error":
		status = http.StatusTooManyRequests
	case "api_error":
		status = http.StatusInternalServerError
	case "authentication_error":
		status = http.StatusUnauthorized
	case "permission_error":
		status = http.StatusForbidden
	case "invalid_request_error":
		status = http.StatusBadRequest
	}
	return llm.NewProviderError(p.name, status, ev.Error.Message)
}
