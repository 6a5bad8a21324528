// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
)

// UsageError marks bad arguments.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string { return e.Reason }

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var netErr net.Error
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.Is(err, config.ErrConfiguration), errors.Is(err, config.ErrPromptNotFound):
		return ExitConfigError
	case errors.Is(err, llm.ErrAuthentication):
		return ExitAuthError
	case errors.Is(err, llm.ErrModelNotFound), errors.Is(err, session.ErrChatNotFound):
		return ExitNotFoundError
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// hint returns a follow-up suggestion for well-known failures.
func hint(err error) string {
	var cfgErr *config.ConfigError
	switch {
	case errors.Is(err, llm.ErrAuthentication):
		return "Check the provider API key in your environment or .env file."
	case errors.As(err, &cfgErr) && cfgErr.Path == "":
		return "Set it in the environment or in a .env file (see 'llmcli paths')."
	case errors.Is(err, llm.ErrModelNotFound):
		return "Run 'llmcli models' to list available aliases."
	case errors.Is(err, session.ErrChatNotFound):
		return "Run 'llmcli list' to see saved chats."
	default:
		return ""
	}
}

// formatError renders err with its hint, if any.
func formatError(err error) string {
	msg := err.Error()
	if h := hint(err); h != "" {
		msg = fmt.Sprintf("%s\n%s", msg, h)
	}
	return msg
}
