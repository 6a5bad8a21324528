// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestNew_FileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llmcli.log")

	log, closer, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("chat_id", "abc").Msg("saved")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chat_id":"abc"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_DebugConsole(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Debug: true, Console: &buf})
	require.NoError(t, err)

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_NoFileIsNop(t *testing.T) {
	log, closer, err := New(Config{})
	require.NoError(t, err)
	log.Error().Msg("nowhere")
	assert.NoError(t, closer.Close())
}
