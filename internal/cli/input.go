// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"
)

// ContinuationPrompt is shown for lines after one ending in a backslash.
const ContinuationPrompt = "... "

// ErrInputAborted is returned when Ctrl+C is pressed at the prompt.
var ErrInputAborted = liner.ErrPromptAborted

// LineReader reads chat input with line editing and persistent history.
type LineReader struct {
	line        *liner.State
	historyFile string
	log         zerolog.Logger
}

// NewLineReader starts line editing and loads historyFile if it exists.
func NewLineReader(historyFile string, log zerolog.Logger) *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)

	r := &LineReader{line: line, historyFile: historyFile, log: log}
	if f, err := os.Open(historyFile); err == nil {
		if _, err := line.ReadHistory(f); err != nil {
			log.Debug().Err(err).Msg("could not read input history")
		}
		f.Close()
	}
	return r
}

// SetCompletions enables tab completion of the given words at the start of
// a line.
func (r *LineReader) SetCompletions(words []string) {
	r.line.SetCompleter(func(line string) []string {
		var out []string
		for _, w := range words {
			if strings.HasPrefix(w, line) {
				out = append(out, w)
			}
		}
		return out
	})
}

// ReadMessage reads one message. Lines ending in a backslash continue onto
// the next line; the backslash is dropped and the lines are joined with
// newlines. Returns ErrInputAborted on Ctrl+C and io.EOF on Ctrl+D.
func (r *LineReader) ReadMessage(prompt string) (string, error) {
	text, err := readContinued(r.line.Prompt, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		r.line.AppendHistory(strings.ReplaceAll(text, "\n", " "))
	}
	return text, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *LineReader) Close() error {
	var errs []error
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err != nil {
		errs = append(errs, err)
	} else if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err != nil {
		errs = append(errs, err)
	} else {
		if _, err := r.line.WriteHistory(f); err != nil {
			errs = append(errs, err)
		}
		f.Close()
	}
	errs = append(errs, r.line.Close())
	return errors.Join(errs...)
}

// readContinued calls next until a line does not end in a backslash.
func readContinued(next func(string) (string, error), prompt string) (string, error) {
	var lines []string
	for {
		line, err := next(prompt)
		if err != nil {
			return "", err
		}
		if rest, ok := strings.CutSuffix(line, `\`); ok {
			lines = append(lines, rest)
			prompt = ContinuationPrompt
			continue
		}
		lines = append(lines, line)
		return strings.Join(lines, "\n"), nil
	}
}
