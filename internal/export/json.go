// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/session"
	"github.com/jeranaias/llmcli/internal/storage"
)

// JSONExporter writes the full chat record. Options do not filter it.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// document is the exported shape: metadata next to the message log.
type document struct {
	Metadata storage.Metadata `json:"metadata"`
	Messages []model.Message  `json:"messages"`
}

// Export renders chat as indented JSON.
func (e *JSONExporter) Export(chat *session.Chat) ([]byte, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat is nil")
	}
	return json.MarshalIndent(document{Metadata: chat.Metadata, Messages: chat.Messages()}, "", "  ")
}

// FileExtension returns ".json".
func (e *JSONExporter) FileExtension() string { return ".json" }

// MimeType returns the JSON MIME type.
func (e *JSONExporter) MimeType() string { return "application/json" }
