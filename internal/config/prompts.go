// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed prompts/*.txt
var builtinPrompts embed.FS

const (
	promptPrefix = "prompt_"
	promptSuffix = ".txt"
)

// PromptFileName returns the file name for a named system prompt.
func PromptFileName(name string) string {
	return promptPrefix + name + promptSuffix
}

// LoadPrompt reads the named system prompt from dir, falling back to the
// built-in prompts.
func LoadPrompt(dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrPromptNotFound, name)
	}

	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, PromptFileName(name)))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read prompt %s: %w", name, err)
		}
	}

	data, err := builtinPrompts.ReadFile("prompts/" + PromptFileName(name))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrPromptNotFound, name)
	}
	return strings.TrimSpace(string(data)), nil
}

// ListPrompts returns the names of built-in and user prompts.
func ListPrompts(dir string) []string {
	seen := map[string]bool{}

	if entries, err := fs.ReadDir(builtinPrompts, "prompts"); err == nil {
		for _, e := range entries {
			if name, ok := promptName(e.Name()); ok {
				seen[name] = true
			}
		}
	}
	if dir != "" {
		if entries, err := os.ReadDir(dir); err == nil {
			for _, e := range entries {
				if name, ok := promptName(e.Name()); ok && !e.IsDir() {
					seen[name] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func promptName(file string) (string, bool) {
	if !strings.HasPrefix(file, promptPrefix) || !strings.HasSuffix(file, promptSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(file, promptPrefix), promptSuffix)
	return name, name != ""
}
