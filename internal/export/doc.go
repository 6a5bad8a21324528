// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved chats to Markdown or JSON files.
//
// # Supported Formats
//
//   - Markdown: front matter plus System/Human/AI sections
//   - JSON: the metadata and structured message log
//
// # Usage
//
//	exporter, err := export.ForFormat("md", opts)
//	path, err := export.ExportToFile(chat, exporter, opts)
package export
