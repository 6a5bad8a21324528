// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jeranaias/llmcli/internal/cloud"
	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/model"
)

// Compatible adapts OpenAI-compatible APIs whose extensions go-openai does
// not model: xAI live search and OpenRouter reasoning and routing fields.
type Compatible struct {
	base
	transport *cloud.Transport
}

func newCompatible(name string, cfg Config) (*Compatible, error) {
	key, err := cfg.APIKey(name)
	if err != nil {
		return nil, err
	}

	opts := []cloud.Option{
		cloud.WithBearer(key),
		cloud.WithHTTPClient(cfg.httpClient()),
	}
	if name == OpenRouter {
		opts = append(opts,
			cloud.WithHeader("HTTP-Referer", cfg.Settings.Referer),
			cloud.WithHeader("X-Title", cfg.Settings.AppTitle),
		)
	}

	return &Compatible{
		base:      newBase(name, cfg),
		transport: cloud.NewTransport(name, cfg.BaseURL(name), opts...),
	}, nil
}

func (p *Compatible) payload(messages []model.Message, modelID string, opts llm.Options) map[string]any {
	system, turns := conversation(messages)
	caps := p.Capabilities(modelID)

	payload := map[string]any{
		"model":    modelID,
		"messages": chatMessages(system, turns, true),
		"stream":   true,
	}
	if caps.MaxTokens > 0 {
		payload["max_tokens"] = caps.MaxTokens
	}

	switch p.name {
	case OpenRouter:
		if caps.SupportsThinking && opts.EnableThinking {
			payload["reasoning"] = map[string]any{"effort": "high", "exclude": false}
		}
		mergeSettings(payload, caps.ExtraParams)
	case XAI:
		if opts.EnableSearch {
			payload["search_parameters"] = map[string]any{"mode": "auto"}
		}
	}

	mergeSettings(payload, opts.Settings)
	return payload
}

// compatChunk is one streamed chat.completion.chunk. OpenRouter reports
// failures inside the stream as an error object.
type compatChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    *int   `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// Stream posts to /chat/completions and decodes the SSE chunks.
func (p *Compatible) Stream(ctx context.Context, messages []model.Message, modelID string, opts llm.Options) (llm.Stream, error) {
	p.log.Debug().Str("model", modelID).Msg("opening stream")

	resp, err := p.transport.Post(ctx, "/chat/completions", p.payload(messages, modelID, opts))
	if err != nil {
		return nil, err
	}

	return func(yield func(llm.StreamEvent, error) bool) {
		var calls toolCalls
		for ev, err := range cloud.Events(resp) {
			if err != nil {
				yield(llm.StreamEvent{}, p.streamError(ctx, err))
				return
			}

			var chunk compatChunk
			if err := json.Unmarshal(ev.Data, &chunk); err != nil {
				p.log.Debug().Err(err).Msg("skipping malformed chunk")
				continue
			}
			if chunk.Error != nil {
				yield(llm.StreamEvent{}, llm.NewProviderError(p.name, errorCode(chunk.Error.Code), chunk.Error.Message))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta
			thinking := delta.Reasoning
			if thinking == "" {
				thinking = delta.ReasoningContent
			}
			if thinking != "" {
				if !yield(llm.ThinkingDelta(thinking), nil) {
					return
				}
			}
			if delta.Content != "" {
				if !yield(llm.TextDelta(delta.Content), nil) {
					return
				}
			}
			for i, tc := range delta.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				calls.add(idx, tc.ID, tc.Function.Name, tc.Function.Arguments)
			}
		}

		for _, call := range calls.drain() {
			if !yield(llm.ToolCall(call), nil) {
				return
			}
		}
		yield(llm.End(nil), nil)
	}, nil
}

func (p *Compatible) streamError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &llm.ProviderError{Provider: p.name, Err: errors.Wrap(err, "stream read failed")}
}

// errorCode extracts a numeric status from an in-stream error code, which
// OpenRouter sends as a number and others as a string.
func errorCode(raw json.RawMessage) int {
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		return code
	}
	return 0
}
