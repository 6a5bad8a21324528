// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/model"
)

// GeminiProvider streams through the genai SDK.
type GeminiProvider struct {
	base
	client *genai.Client
}

func newGemini(cfg Config) (*GeminiProvider, error) {
	key, err := cfg.APIKey(Gemini)
	if err != nil {
		return nil, err
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if u := cfg.BaseURL(Gemini); u != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: u}
	}
	if c := cfg.httpClient(); c != nil {
		clientCfg.HTTPClient = c
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}
	return &GeminiProvider{base: newBase(Gemini, cfg), client: client}, nil
}

func (p *GeminiProvider) request(messages []model.Message, modelID string, opts llm.Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, turns := conversation(messages)

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Content}},
		})
	}

	caps := p.Capabilities(modelID)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if caps.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(caps.MaxTokens)
	}
	if n, ok := intSetting(opts.Settings, "max_tokens"); ok {
		cfg.MaxOutputTokens = int32(n)
	}
	if t, ok := floatSetting(opts.Settings, "temperature"); ok {
		temp := float32(t)
		cfg.Temperature = &temp
	}
	if caps.SupportsThinking && opts.EnableThinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	if opts.EnableSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return contents, cfg
}

// Stream calls GenerateContentStream. The SDK reports request failures on
// the first pull, so this never returns an error itself.
func (p *GeminiProvider) Stream(ctx context.Context, messages []model.Message, modelID string, opts llm.Options) (llm.Stream, error) {
	contents, cfg := p.request(messages, modelID, opts)
	p.log.Debug().Str("model", modelID).Int("contents", len(contents)).Msg("opening stream")

	seq := p.client.Models.GenerateContentStream(ctx, modelID, contents, cfg)

	return func(yield func(llm.StreamEvent, error) bool) {
		for resp, err := range seq {
			if err != nil {
				yield(llm.StreamEvent{}, p.mapError(ctx, err))
				return
			}
			for _, ev := range geminiEvents(resp) {
				if !yield(ev, nil) {
					return
				}
			}
		}
		yield(llm.End(nil), nil)
	}, nil
}

// geminiEvents converts the first candidate of a chunk.
func geminiEvents(resp *genai.GenerateContentResponse) []llm.StreamEvent {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil
	}

	var out []llm.StreamEvent
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			args, _ := json.Marshal(part.FunctionCall.Args)
			out = append(out, llm.ToolCall(llm.ToolEvent{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: repairArgs(string(args)),
			}))
		case part.Text == "":
		case part.Thought:
			out = append(out, llm.ThinkingDelta(part.Text))
		default:
			out = append(out, llm.TextDelta(part.Text))
		}
	}
	return out
}

func (p *GeminiProvider) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewProviderError(p.name, apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llm.NewProviderError(p.name, apiErrPtr.Code, apiErrPtr.Message)
	}
	return &llm.ProviderError{Provider: p.name, Err: errors.Wrap(err, "stream failed")}
}
