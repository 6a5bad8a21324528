// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"io"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/model"
)

// OpenAIFamily adapts OpenAI and DeepSeek, which share the chat completions
// wire format. DeepSeek reasoning models stream their trace in
// reasoning_content.
type OpenAIFamily struct {
	base
	client *openai.Client
}

func newOpenAIFamily(name string, cfg Config) (*OpenAIFamily, error) {
	key, err := cfg.APIKey(name)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(key)
	if u := cfg.BaseURL(name); u != "" {
		clientCfg.BaseURL = u
	}
	if c := cfg.httpClient(); c != nil {
		clientCfg.HTTPClient = c
	}

	return &OpenAIFamily{
		base:   newBase(name, cfg),
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

func (p *OpenAIFamily) request(messages []model.Message, modelID string, opts llm.Options) openai.ChatCompletionRequest {
	system, turns := conversation(messages)

	req := openai.ChatCompletionRequest{
		Model:  modelID,
		Stream: true,
	}
	for _, m := range chatMessages(system, turns, true) {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	if max := p.Capabilities(modelID).MaxTokens; max > 0 {
		// OpenAI deprecated max_tokens for newer models; DeepSeek only
		// understands the old field.
		if p.name == OpenAI {
			req.MaxCompletionTokens = max
		} else {
			req.MaxTokens = max
		}
	}
	if t, ok := floatSetting(opts.Settings, "temperature"); ok {
		req.Temperature = float32(t)
	}
	if t, ok := floatSetting(opts.Settings, "top_p"); ok {
		req.TopP = float32(t)
	}
	if n, ok := intSetting(opts.Settings, "max_tokens"); ok {
		req.MaxTokens, req.MaxCompletionTokens = 0, 0
		if p.name == OpenAI {
			req.MaxCompletionTokens = n
		} else {
			req.MaxTokens = n
		}
	}
	return req
}

// Stream starts a chat completion stream.
func (p *OpenAIFamily) Stream(ctx context.Context, messages []model.Message, modelID string, opts llm.Options) (llm.Stream, error) {
	req := p.request(messages, modelID, opts)
	p.log.Debug().Str("model", modelID).Int("messages", len(req.Messages)).Msg("opening stream")

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, p.mapError(ctx, err)
	}

	return func(yield func(llm.StreamEvent, error) bool) {
		defer stream.Close()

		var calls toolCalls
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(llm.StreamEvent{}, p.mapError(ctx, err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			if delta.ReasoningContent != "" {
				if !yield(llm.ThinkingDelta(delta.ReasoningContent), nil) {
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

func (p *OpenAIFamily) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewProviderError(p.name, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.ProviderError{Provider: p.name, Status: reqErr.HTTPStatusCode, Err: reqErr.Err}
	}
	return &llm.ProviderError{Provider: p.name, Err: errors.Wrap(err, "stream failed")}
}
