// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the HTTP streaming transport shared by the providers that
// speak Server-Sent Events directly (Anthropic, OpenRouter, xAI).
//
// # Key Types
//
//   - Transport: posts a JSON body and returns the streaming response,
//     mapping error statuses to llm.ProviderError
//   - SSEReader: parses event:/data: frames from a response body
//   - Event: one decoded SSE frame
//
// # Usage
//
//	t := cloud.NewTransport("openrouter", "https://openrouter.ai/api/v1",
//	    cloud.WithBearer(apiKey))
//	resp, err := t.Post(ctx, "/chat/completions", payload)
//	for ev, err := range cloud.Events(resp) { ... }
//
// API keys are only ever placed in request headers, never logged.
package cloud
