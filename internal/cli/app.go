// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/logging"
	"github.com/jeranaias/llmcli/internal/provider"
	"github.com/jeranaias/llmcli/internal/session"
)

// App holds the components shared by every command.
type App struct {
	loader   *config.Loader
	settings *config.Settings
	paths    config.Paths
	log      zerolog.Logger
	closers  []io.Closer

	registry *llm.Registry
	client   *llm.Client
	manager  *session.Manager
	kind     llm.RendererKind

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// appOptions are the inputs newApp takes from flags and the environment.
type appOptions struct {
	Debug     bool
	Plain     bool
	Out       io.Writer
	ErrOut    io.Writer
	Getenv    func(string) string
	StdoutTTY bool
}

// newApp loads configuration, sets up logging and builds the provider
// registry, LLM client and chat manager. Configuration errors are fatal.
func newApp(opts appOptions) (*App, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return nil, &config.ConfigError{Err: err}
	}
	loader := config.NewLoader(dir)

	settings, err := loader.Settings()
	if err != nil {
		return nil, err
	}
	paths, err := loader.Paths()
	if err != nil {
		return nil, &config.ConfigError{Err: err}
	}

	log, logCloser, err := logging.New(logging.Config{
		Level:   settings.Log.Level,
		File:    paths.LogFile,
		Debug:   opts.Debug,
		Console: opts.ErrOut,
	})
	if err != nil {
		fmt.Fprintf(opts.ErrOut, "Warning: %v\n", err)
	}
	loader.SetLogger(log)

	if _, err := loader.Models(); err != nil {
		logCloser.Close()
		return nil, err
	}

	colors := ColorsEnabled(opts.Getenv, opts.StdoutTTY)
	lipgloss.SetColorProfile(colorProfile(colors))
	kind := ResolveRenderer(settings.UI.Renderer, opts.Plain, colors)

	registry := llm.NewRegistry(loader)
	provider.RegisterAll(registry, provider.Config{
		Models:   loader,
		Settings: settings.Providers,
		Getenv:   opts.Getenv,
		Log:      log,
	})

	client := llm.NewClient(registry,
		llm.WithOutput(opts.Out),
		llm.WithRendererKind(kind),
		llm.WithRetryPolicy(retryPolicy(settings)),
		llm.WithClientLogger(log),
	)

	manager, err := session.NewManager(paths.ChatDir,
		session.WithLogger(log),
		session.WithChatSettings(settings.Chat),
	)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	log.Debug().
		Str("config_dir", dir).
		Str("chat_dir", paths.ChatDir).
		Str("renderer", string(kind)).
		Msg("app initialized")

	return &App{
		loader:   loader,
		settings: settings,
		paths:    paths,
		log:      log,
		closers:  []io.Closer{logCloser},
		registry: registry,
		client:   client,
		manager:  manager,
		kind:     kind,
		out:      opts.Out,
		errOut:   opts.ErrOut,
	}, nil
}

// Close releases the log file and anything else registered.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// applySettings makes s current for the client, the manager and the REPL.
func (a *App) applySettings(s *config.Settings) {
	a.settings = s
	a.client.SetRetryPolicy(retryPolicy(s))
	a.manager.SetChatSettings(s.Chat)
}

// refreshSettings applies settings the watcher or /thinking invalidated.
// A file that no longer parses leaves the current settings in place.
func (a *App) refreshSettings() {
	s, err := a.loader.Settings()
	if err != nil {
		a.log.Warn().Err(err).Msg("keeping previous settings")
		return
	}
	if s != a.settings {
		a.applySettings(s)
	}
}

func retryPolicy(s *config.Settings) llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxAttempts: s.Retry.MaxAttempts,
		MinDelay:    s.Retry.MinDelay(),
		MaxDelay:    s.Retry.MaxDelay(),
	}
}

// watchConfig invalidates cached configuration when settings.toml or
// models.yaml change on disk. The returned func stops the watcher and waits
// for it to exit.
func (a *App) watchConfig(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	if err := os.MkdirAll(a.loader.Dir(), 0o755); err != nil {
		a.log.Debug().Err(err).Msg("config watcher not started")
		return cancel
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.loader.Watch(ctx); err != nil {
			a.log.Debug().Err(err).Msg("config watcher stopped")
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// styled reports whether output uses the styled renderer.
func (a *App) styled() bool { return a.kind == llm.RendererStyled }

// loadDotEnv loads .env from the working directory and then the config
// directory. Existing variables are never overridden.
func loadDotEnv() error {
	files := []string{".env"}
	if dir, err := config.ConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, ".env"))
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &config.ConfigError{Path: f, Err: err}
		}
	}
	return nil
}
