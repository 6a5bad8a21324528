// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider contains the adapters that turn each provider API into a
// stream of llm.StreamEvent values.
//
// OpenAI and DeepSeek go through go-openai. Gemini uses the genai SDK.
// Anthropic, xAI and OpenRouter need request fields the SDKs do not model, so
// they are spoken directly over cloud.Transport.
package provider
