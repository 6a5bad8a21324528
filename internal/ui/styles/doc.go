// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the color palette and shared Lip Gloss styles for
// llmcli. All colors are AdaptiveColor so light and dark terminals both read
// well.
package styles
