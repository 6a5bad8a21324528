// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Loader reads and caches settings and the model table. Build one at startup
// and pass it to the components that need configuration.
type Loader struct {
	dir string
	log zerolog.Logger

	mu       sync.Mutex
	settings *Settings
	models   *Models
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for reload diagnostics.
func WithLogger(log zerolog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader creates a loader rooted at the given config directory.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{dir: dir, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the config directory.
func (l *Loader) Dir() string {
	return l.dir
}

// SettingsPath returns the settings.toml location.
func (l *Loader) SettingsPath() string {
	return filepath.Join(l.dir, SettingsFileName)
}

// ModelsPath returns the user models.yaml location.
func (l *Loader) ModelsPath() string {
	return filepath.Join(l.dir, ModelsFileName)
}

// PromptsDir returns the user prompts directory.
func (l *Loader) PromptsDir() string {
	return filepath.Join(l.dir, PromptsDirName)
}

// Settings returns the cached settings, loading them on first use.
func (l *Loader) Settings() (*Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.settings != nil {
		return l.settings, nil
	}
	s, err := LoadSettings(l.SettingsPath())
	if err != nil {
		return nil, err
	}
	l.settings = s
	return s, nil
}

// Models returns the cached model table, loading it on first use.
func (l *Loader) Models() (*Models, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.models != nil {
		return l.models, nil
	}
	m, err := l.readModels()
	if err != nil {
		return nil, err
	}
	l.models = m
	return m, nil
}

// Paths resolves every path from the current settings.
func (l *Loader) Paths() (Paths, error) {
	s, err := l.Settings()
	if err != nil {
		return Paths{}, err
	}
	return ResolvePaths(l.dir, s)
}

// Invalidate drops cached values; the next access reads the files again.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settings = nil
	l.models = nil
}

// Reload re-reads both sources immediately. On failure the previous values
// stay cached.
func (l *Loader) Reload() error {
	s, err := LoadSettings(l.SettingsPath())
	if err != nil {
		return err
	}
	m, err := l.readModels()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.settings = s
	l.models = m
	l.mu.Unlock()

	l.log.Debug().Str("dir", l.dir).Msg("configuration reloaded")
	return nil
}

// Update applies fn to the settings as stored on disk, leaving environment
// overrides out of the file, then saves and drops the cache.
func (l *Loader) Update(fn func(*Settings)) error {
	path := l.SettingsPath()
	s, err := readSettingsFile(path)
	if err != nil {
		return err
	}
	fn(s)
	if err := s.Validate(); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := SaveSettings(s, path); err != nil {
		return err
	}
	l.Invalidate()
	return nil
}

// SetLogger replaces the logger. Call it before Watch.
func (l *Loader) SetLogger(log zerolog.Logger) {
	l.log = log
}

// Watch invalidates the cache whenever settings.toml or models.yaml change.
// It blocks until ctx is done. The config directory must exist.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors often replace files by rename, so watch the directory.
	if err := watcher.Add(l.dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch filepath.Base(event.Name) {
			case SettingsFileName, ModelsFileName:
			default:
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				l.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("config changed")
				l.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (l *Loader) readModels() (*Models, error) {
	path := l.ModelsPath()
	user, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return ParseModels(defaultModelsYAML, user)
}
