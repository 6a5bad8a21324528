// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/llmcli/internal/config"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrModelNotFound is returned for an alias no provider section knows.
	ErrModelNotFound = errors.New("model not found")

	// ErrAuthentication is returned when a provider rejects the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRateLimited is returned when a provider throttles the request.
	ErrRateLimited = errors.New("rate limited")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ModelNotFoundError names the unknown alias and what is available.
type ModelNotFoundError struct {
	Alias     string
	Available []string
	Reason    string
}

func (e *ModelNotFoundError) Error() string {
	msg := fmt.Sprintf("model not found: %s", e.Alias)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if len(e.Available) > 0 {
		msg += "; available: " + strings.Join(e.Available, ", ")
	}
	return msg
}

// Is makes errors.Is(err, ErrModelNotFound) match.
func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// ProviderError is an error response from a provider API.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	if e.Status != 0 {
		fmt.Fprintf(&sb, " error %d", e.Status)
	} else {
		sb.WriteString(" error")
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is maps HTTP auth and throttling statuses onto the sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// Temporary reports whether retrying the same request could succeed.
func (e *ProviderError) Temporary() bool {
	switch {
	case e.Status == 0:
		// Transport failure before any status was received.
		return true
	case e.Status == http.StatusRequestTimeout,
		e.Status == http.StatusConflict,
		e.Status == http.StatusTooManyRequests,
		e.Status >= 500:
		return true
	default:
		return false
	}
}

// NewProviderError builds a ProviderError from an HTTP status and body.
func NewProviderError(provider string, status int, message string) *ProviderError {
	return &ProviderError{Provider: provider, Status: status, Message: strings.TrimSpace(message)}
}

// StreamError is a failure after part of the response was already shown.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// =============================================================================
// CLASSIFICATION
// =============================================================================

// IsRetryable decides whether the retry policy may try again. Permanent:
// cancellation, authentication, unknown models, configuration problems,
// client errors (4xx other than 408/409/429) and any failure after output
// was shown. Everything else, network errors included, is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, config.ErrConfiguration) {
		return false
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Temporary()
	}
	return true
}
