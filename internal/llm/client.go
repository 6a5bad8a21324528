// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/ui/styles"
)

// Response is the result of one exchange.
type Response struct {
	Message     model.Message
	Interrupted bool
	Attempts    int
	Provider    string
	ModelID     string
}

// Text returns the visible text of the response.
func (r *Response) Text() string {
	return r.Message.Text()
}

// Client runs chat exchanges. It is safe to reuse across turns but not for
// concurrent calls that share an output writer.
type Client struct {
	registry *Registry
	out      io.Writer
	kind     RendererKind
	retry    RetryPolicy
	log      zerolog.Logger

	newRenderer func(RendererKind, io.Writer) Renderer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithOutput sets where responses are rendered. Defaults to stdout.
func WithOutput(w io.Writer) ClientOption {
	return func(c *Client) { c.out = w }
}

// WithRendererKind selects the renderer implementation.
func WithRendererKind(kind RendererKind) ClientOption {
	return func(c *Client) { c.kind = kind }
}

// WithRendererFactory replaces renderer construction, mostly for tests.
func WithRendererFactory(f func(RendererKind, io.Writer) Renderer) ClientOption {
	return func(c *Client) { c.newRenderer = f }
}

// WithRetryPolicy sets the retry bounds.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = p }
}

// WithClientLogger sets the logger.
func WithClientLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client over registry.
func NewClient(registry *Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		out:         os.Stdout,
		kind:        RendererPlain,
		retry:       DefaultRetryPolicy(),
		log:         zerolog.Nop(),
		newRenderer: NewRenderer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetRetryPolicy replaces the retry bounds for later calls.
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// RetryPolicy returns the current retry bounds.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retry
}

// Registry returns the registry the client resolves aliases with.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Chat performs one streamed exchange and returns the accumulated response.
//
// Cancelling ctx is not an error: the events received so far are finalized
// and the Response comes back with Interrupted set. Unknown aliases fail
// immediately; provider failures are retried per the RetryPolicy as long as
// nothing has been rendered yet.
func (c *Client) Chat(ctx context.Context, messages []model.Message, alias string, opts Options) (*Response, error) {
	provider, modelID, err := c.registry.Resolve(alias)
	if err != nil {
		return nil, err
	}

	caps := provider.Capabilities(modelID)
	log := c.log.With().Str("provider", provider.Name()).Str("model", modelID).Logger()

	if opts.EnableSearch && !caps.SupportsSearch {
		log.Warn().Msg("search requested but not supported; disabled")
		if !opts.Silent {
			fmt.Fprintln(c.out, styles.RenderWarning(fmt.Sprintf("%s does not support search; continuing without it.", alias)))
		}
		opts.EnableSearch = false
	}
	if !caps.SupportsThinking {
		opts.EnableThinking = false
	}

	handler := NewResponseHandler(caps, opts, c.newRenderer(c.kind, c.out))

	attempts := 0
	err = c.retry.Do(ctx, func(attempt int) error {
		attempts = attempt
		return c.exchange(ctx, provider, messages, modelID, opts, handler)
	}, func(attempt int, err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", wait).Msg("provider call failed, retrying")
		if !opts.Silent {
			fmt.Fprintln(c.out, styles.RenderWarning(fmt.Sprintf("Request failed (%v); retrying in %s...", err, wait.Round(time.Second))))
		}
	})

	if err != nil && ctx.Err() != nil {
		// Cancelled while waiting between attempts.
		handler.MarkInterrupted()
		err = nil
	}
	handler.Finish()

	if err != nil {
		log.Error().Err(err).Int("attempts", attempts).Msg("chat failed")
		return nil, err
	}

	resp := &Response{
		Message:     handler.Message(),
		Interrupted: handler.Interrupted(),
		Attempts:    attempts,
		Provider:    provider.Name(),
		ModelID:     modelID,
	}
	resp.Message.ModelName = modelID

	log.Debug().
		Int("attempts", attempts).
		Bool("interrupted", resp.Interrupted).
		Int("chars", len(handler.FullResponse())).
		Msg("chat complete")
	return resp, nil
}

// exchange runs a single attempt, pulling events until the stream ends or
// ctx is cancelled.
func (c *Client) exchange(ctx context.Context, p Provider, messages []model.Message, modelID string, opts Options, h *ResponseHandler) error {
	if err := ctx.Err(); err != nil {
		h.MarkInterrupted()
		return nil
	}

	stream, err := p.Stream(ctx, messages, modelID, opts)
	if err != nil {
		return c.attemptError(ctx, err, h)
	}

	for ev, err := range stream {
		if err != nil {
			return c.attemptError(ctx, err, h)
		}
		if ctx.Err() != nil {
			h.MarkInterrupted()
			return nil
		}
		h.HandleEvent(ev)
		if h.Finished() {
			break
		}
	}

	if ctx.Err() != nil {
		h.MarkInterrupted()
	}
	return nil
}

func (c *Client) attemptError(ctx context.Context, err error, h *ResponseHandler) error {
	if ctx.Err() != nil {
		h.MarkInterrupted()
		return nil
	}
	if h.Started() {
		return &StreamError{Partial: h.FullResponse(), Err: err}
	}
	return err
}
