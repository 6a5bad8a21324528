// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultMinDelay    = 4 * time.Second
	DefaultMaxDelay    = 10 * time.Second
)

// RetryPolicy bounds retries of a provider round-trip: MaxAttempts tries in
// total, waiting MinDelay, then doubling up to MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns 3 attempts with 4s..10s exponential waits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		MinDelay:    DefaultMinDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// RetryNotify is called before each wait.
type RetryNotify func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns an error IsRetryable rejects, the
// attempts run out, or ctx is done. op receives the 1-based attempt number.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, notify RetryNotify) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.MinDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}
	}
	return backoff.RetryNotify(operation, policy, onRetry)
}
