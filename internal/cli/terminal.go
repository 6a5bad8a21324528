// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jeranaias/llmcli/internal/llm"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return isTerminal(os.Stdin)
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return term.IsTerminal(int(fd)) || isatty.IsCygwinTerminal(fd)
}

// =============================================================================
// TERMINAL WIDTH
// =============================================================================

const (
	// DefaultTerminalWidth is used when detection fails.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest width used for wrapping.
	MinTerminalWidth = 40
)

// TerminalWidth returns the stdout width, or DefaultTerminalWidth.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, MinTerminalWidth)
}

// =============================================================================
// COLOR AND RENDERER SELECTION
// =============================================================================

// ColorsEnabled applies NO_COLOR (https://no-color.org/), then FORCE_COLOR,
// then stdout TTY detection.
func ColorsEnabled(getenv func(string) string, stdoutTTY bool) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	if getenv("FORCE_COLOR") != "" {
		return true
	}
	return stdoutTTY
}

// colorProfile returns the lipgloss color profile for the given decision.
func colorProfile(colors bool) termenv.Profile {
	if !colors {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// ResolveRenderer picks the renderer from the ui.renderer setting. --plain
// always wins; "auto" is styled only when colors are enabled.
func ResolveRenderer(setting string, forcePlain, colors bool) llm.RendererKind {
	if forcePlain {
		return llm.RendererPlain
	}
	switch strings.ToLower(setting) {
	case "plain":
		return llm.RendererPlain
	case "styled":
		return llm.RendererStyled
	default:
		if colors {
			return llm.RendererStyled
		}
		return llm.RendererPlain
	}
}

// stdout wraps os.Stdout so ANSI sequences work on Windows consoles.
func stdout() io.Writer {
	return colorable.NewColorableStdout()
}
