// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for llmcli.
//
// Three sources are layered:
//   - settings.toml in the user config directory (TOML, optional)
//   - models.yaml: the embedded default capability table, merged with an
//     optional user models.yaml in the config directory
//   - environment variables (and a .env file loaded by the CLI)
//
// A Loader is built once at startup and handed to whoever needs settings or
// model capabilities. It caches what it has read until Reload or Invalidate
// is called, and Watch invalidates the cache when the files change on disk.
package config
