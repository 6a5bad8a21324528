// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/llmcli/internal/llm"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// streamingClient has no overall timeout; streams are bounded by context.
var streamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	},
}

// Transport posts JSON requests to one provider API.
type Transport struct {
	provider string
	baseURL  string
	headers  http.Header
	client   *http.Client
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the shared streaming client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		if value != "" {
			t.headers.Set(key, value)
		}
	}
}

// WithBearer sets bearer-token authorization.
func WithBearer(apiKey string) Option {
	return WithHeader("Authorization", "Bearer "+apiKey)
}

// NewTransport creates a transport for provider rooted at baseURL.
func NewTransport(provider, baseURL string, opts ...Option) *Transport {
	t := &Transport{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		headers:  http.Header{},
		client:   streamingClient,
	}
	t.headers.Set("Content-Type", "application/json")
	t.headers.Set("Accept", "text/event-stream")
	t.headers.Set("Cache-Control", "no-cache")
	t.headers.Set("User-Agent", "llmcli")
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BaseURL returns the API root.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Post sends body as JSON to path and returns the open response. Non-200
// statuses are turned into *llm.ProviderError and the body is closed.
func (t *Transport) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range t.headers {
		req.Header[k] = v
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &llm.ProviderError{Provider: t.provider, Err: errors.Wrap(err, "request failed")}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, HandleErrorResponse(t.provider, resp.StatusCode, data)
	}
	return resp, nil
}

// apiErrorResponse covers the error envelopes used by the supported APIs:
// {"error":{"message":...}}, {"error":"..."} and {"message":...}.
type apiErrorResponse struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// HandleErrorResponse converts an HTTP error body into a ProviderError.
func HandleErrorResponse(provider string, status int, body []byte) error {
	return llm.NewProviderError(provider, status, errorMessage(body))
}

func errorMessage(body []byte) string {
	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body))
	}

	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			if nested.Type != "" {
				return fmt.Sprintf("%s (%s)", nested.Message, nested.Type)
			}
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(envelope.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return strings.TrimSpace(string(body))
}
