// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the llmcli packages.
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// Text:
//   - TruncateWidth: display-width aware truncation with ellipsis
//   - CollapseWhitespace: folds newlines and runs of spaces into single spaces
//   - PadRight: pads a string to a display width
package util
