// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/model"
)

const testModelsYAML = `
fake:
  thinker:
    supports_thinking: true
  plain:
    supports_search: false
aliases:
  default: fake/thinker
  t: fake/thinker
  p: fake/plain
  ghost: nowhere/model
`

// fakeProvider replays one scripted attempt per Stream call.
type fakeProvider struct {
	table    *config.Models
	attempts []func(ctx context.Context) (Stream, error)
	calls    int
	lastOpts Options
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Capabilities(modelID string) Capabilities {
	return p.table.Capabilities("fake", modelID)
}

func (p *fakeProvider) Stream(ctx context.Context, _ []model.Message, _ string, opts Options) (Stream, error) {
	p.lastOpts = opts
	i := p.calls
	p.calls++
	if i >= len(p.attempts) {
		i = len(p.attempts) - 1
	}
	return p.attempts[i](ctx)
}

func streamOK(events ...StreamEvent) func(context.Context) (Stream, error) {
	return func(context.Context) (Stream, error) { return StreamOf(events...), nil }
}

func openFails(err error) func(context.Context) (Stream, error) {
	return func(context.Context) (Stream, error) { return nil, err }
}

var fastRetry = RetryPolicy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func newTestClient(t *testing.T, p *fakeProvider, out io.Writer) *Client {
	t.Helper()
	table, err := config.ParseModels([]byte(testModelsYAML), nil)
	require.NoError(t, err)
	p.table = table

	reg := NewRegistry(StaticModels{Table: table})
	reg.RegisterProvider(p)
	return NewClient(reg,
		WithOutput(out),
		WithRendererKind(RendererPlain),
		WithRetryPolicy(fastRetry),
	)
}

func userTurn(text string) []model.Message {
	return []model.Message{model.NewUserMessage(text, "")}
}

// =============================================================================
// CHAT
// =============================================================================

func TestClient_ChatStreamsAndAccumulates(t *testing.T) {
	var out bytes.Buffer
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		streamOK(ThinkingDelta("reasoning..."), TextDelta("The "), TextDelta("answer."), End(nil)),
	}}
	c := newTestClient(t, p, &out)

	resp, err := c.Chat(context.Background(), userTurn("q"), "t", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "The answer.", resp.Text())
	assert.Equal(t, "reasoning...", resp.Message.Thinking())
	assert.Equal(t, "thinker", resp.Message.ModelName)
	assert.False(t, resp.Interrupted)
	assert.Equal(t, 1, resp.Attempts)
	assert.Contains(t, out.String(), "<thinking>")
	assert.Contains(t, out.String(), "The answer.")
}

func TestClient_UnknownAliasNotRetried(t *testing.T) {
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){streamOK(End(nil))}}
	c := newTestClient(t, p, io.Discard)

	_, err := c.Chat(context.Background(), userTurn("q"), "nope", DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Zero(t, p.calls)

	var mnf *ModelNotFoundError
	require.True(t, errors.As(err, &mnf))
	assert.Contains(t, mnf.Available, "t")
}

func TestClient_ProviderWithoutAdapter(t *testing.T) {
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){streamOK(End(nil))}}
	c := newTestClient(t, p, io.Discard)

	_, err := c.Chat(context.Background(), userTurn("q"), "ghost", DefaultOptions())
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	var out bytes.Buffer
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		openFails(NewProviderError("fake", http.StatusServiceUnavailable, "overloaded")),
		func(context.Context) (Stream, error) {
			return ErrorStream(errors.New("connection reset")), nil
		},
		streamOK(TextDelta("finally"), End(nil)),
	}}
	c := newTestClient(t, p, &out)

	resp, err := c.Chat(context.Background(), userTurn("q"), "p", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Text())
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, 3, p.calls)
	assert.Contains(t, out.String(), "retrying")
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		openFails(NewProviderError("fake", http.StatusBadGateway, "")),
	}}
	c := newTestClient(t, p, io.Discard)

	_, err := c.Chat(context.Background(), userTurn("q"), "p", DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestClient_AuthErrorsNotRetried(t *testing.T) {
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		openFails(NewProviderError("fake", http.StatusUnauthorized, "bad key")),
	}}
	c := newTestClient(t, p, io.Discard)

	_, err := c.Chat(context.Background(), userTurn("q"), "p", DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 1, p.calls)
}

func TestClient_FailureAfterOutputNotRetried(t *testing.T) {
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		func(context.Context) (Stream, error) {
			return ErrorStream(errors.New("connection reset"), TextDelta("half")), nil
		},
	}}
	c := newTestClient(t, p, io.Discard)

	_, err := c.Chat(context.Background(), userTurn("q"), "p", DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "half", streamErr.Partial)
}

func TestClient_InterruptMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		func(context.Context) (Stream, error) {
			return func(yield func(StreamEvent, error) bool) {
				if !yield(ThinkingDelta("t"), nil) {
					return
				}
				if !yield(TextDelta("partial"), nil) {
					return
				}
				cancel()
				if !yield(TextDelta(" never shown"), nil) {
					return
				}
				yield(End(nil), nil)
			}, nil
		},
	}}
	c := newTestClient(t, p, &out)

	resp, err := c.Chat(ctx, userTurn("q"), "t", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, resp.Interrupted)
	assert.Equal(t, "partial", resp.Text())
	assert.NotContains(t, out.String(), "never shown")
	assert.Contains(t, out.String(), "</thinking>", "open thinking section is closed on interrupt")
	assert.Equal(t, 1, p.calls)
}

func TestClient_InterruptSurfacedAsTransportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		func(ctx context.Context) (Stream, error) {
			return func(yield func(StreamEvent, error) bool) {
				if !yield(TextDelta("so far"), nil) {
					return
				}
				cancel()
				yield(StreamEvent{}, ctx.Err())
			}, nil
		},
	}}
	c := newTestClient(t, p, io.Discard)

	resp, err := c.Chat(ctx, userTurn("q"), "p", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, resp.Interrupted)
	assert.Equal(t, "so far", resp.Text())
}

func TestClient_SearchDisabledWhenUnsupported(t *testing.T) {
	var out bytes.Buffer
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){streamOK(TextDelta("x"), End(nil))}}
	c := newTestClient(t, p, &out)

	opts := DefaultOptions()
	opts.EnableSearch = true
	_, err := c.Chat(context.Background(), userTurn("q"), "p", opts)
	require.NoError(t, err)

	assert.False(t, p.lastOpts.EnableSearch)
	assert.False(t, p.lastOpts.EnableThinking, "thinking is not requested from models without it")
	assert.Contains(t, out.String(), "does not support search")
}

func TestClient_SilentWritesNothing(t *testing.T) {
	var out bytes.Buffer
	p := &fakeProvider{attempts: []func(context.Context) (Stream, error){
		streamOK(ThinkingDelta("t"), TextDelta("Title Here"), End(nil)),
	}}
	c := newTestClient(t, p, &out)

	opts := SilentOptions()
	opts.EnableSearch = true
	resp, err := c.Chat(context.Background(), userTurn("q"), "t", opts)
	require.NoError(t, err)
	assert.Equal(t, "Title Here", resp.Text())
	assert.Empty(t, out.String())
}

// =============================================================================
// RETRY POLICY
// =============================================================================

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, MinDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(int) error {
			calls++
			return errors.New("transient")
		}, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop on cancel")
	}
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_NotifyReportsAttempt(t *testing.T) {
	var seen []int
	err := fastRetry.Do(context.Background(), func(attempt int) error {
		if attempt < 3 {
			return errors.New("again")
		}
		return nil
	}, func(attempt int, _ error, _ time.Duration) {
		seen = append(seen, attempt)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errors.New("dial tcp: connection refused"), true},
		{"rate limited", NewProviderError("x", 429, ""), true},
		{"server", NewProviderError("x", 500, ""), true},
		{"transport", &ProviderError{Provider: "x", Err: io.ErrUnexpectedEOF}, true},
		{"unauthorized", NewProviderError("x", 401, ""), false},
		{"forbidden", NewProviderError("x", 403, ""), false},
		{"bad request", NewProviderError("x", 400, ""), false},
		{"unknown model", &ModelNotFoundError{Alias: "a"}, false},
		{"config", &config.ConfigError{Err: errors.New("missing key")}, false},
		{"canceled", context.Canceled, false},
		{"partial", &StreamError{Partial: "x", Err: errors.New("eof")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestProviderError_Sentinels(t *testing.T) {
	assert.ErrorIs(t, NewProviderError("x", 401, ""), ErrAuthentication)
	assert.ErrorIs(t, NewProviderError("x", 429, ""), ErrRateLimited)
	assert.NotErrorIs(t, NewProviderError("x", 500, ""), ErrAuthentication)
	assert.Equal(t, "x error 500: boom", NewProviderError("x", 500, " boom ").Error())
}
