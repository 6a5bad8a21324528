// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm runs a streamed chat exchange against any configured provider.
//
// Providers turn their wire protocol into a lazy Stream of StreamEvent
// values. Client.Chat resolves a model alias through the Registry, opens the
// stream under a bounded retry policy, and feeds each event to a
// ResponseHandler which drives a Renderer and accumulates the assistant
// message. Cancelling the context stops the exchange between events; what
// was received so far is finalized and returned as an interrupted Response.
package llm
