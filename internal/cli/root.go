// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llmcli/internal/ui/styles"
)

// Version information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// resumeSelect is the --resume value when no id is given.
const resumeSelect = "select"

// rootFlags are the interactive chat flags.
type rootFlags struct {
	model        string
	resume       string
	cont         bool
	search       bool
	noThinking   bool
	hideThinking bool
	plain        bool
	userPaths    bool
	debug        bool
}

// Streams are where commands read and write.
type Streams struct {
	Out    io.Writer
	ErrOut io.Writer

	// In feeds the chat picker. Nil means stdin.
	In io.Reader

	// TTY reports whether Out is an interactive terminal.
	TTY bool
}

// NewRootCommand builds the command tree.
func NewRootCommand(s Streams) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "llmcli [prompt-name]",
		Short: "Chat with OpenAI, Anthropic, Gemini, DeepSeek, xAI and OpenRouter models",
		Long: `Interactive multi-provider LLM chat with saved, resumable sessions.

prompt-name selects prompts/prompt_<name>.txt from the config directory
(built-in: general, code). API keys are read from the environment or a .env
file.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, s, func(a *App) error {
				if flags.userPaths {
					return a.printPaths()
				}
				return a.runChat(cmd.Context(), flags, cmd.Flags().Changed("model"), args)
			})
		},
	}
	cmd.SetOut(s.Out)
	cmd.SetErr(s.ErrOut)

	f := cmd.Flags()
	f.StringVarP(&flags.model, "model", "m", "", "model alias or id (see 'llmcli models')")
	f.StringVarP(&flags.resume, "resume", "r", "", "resume a chat: no value opens the picker, -r=<id> loads that chat")
	f.Lookup("resume").NoOptDefVal = resumeSelect
	f.BoolVarP(&flags.cont, "continue", "c", false, "continue the most recent chat")
	f.BoolVar(&flags.search, "search", false, "enable web search when the model supports it")
	f.BoolVar(&flags.noThinking, "no-thinking", false, "disable extended thinking")
	f.BoolVar(&flags.hideThinking, "hide-thinking", false, "keep thinking enabled but do not display it")
	f.BoolVar(&flags.userPaths, "user-paths", false, "print config and data locations and exit")

	pf := cmd.PersistentFlags()
	pf.BoolVar(&flags.plain, "plain", false, "plain output without colors or Markdown")
	pf.BoolVar(&flags.debug, "debug", false, "log debug output to stderr")

	cmd.AddCommand(
		newListCommand(flags, s),
		newShowCommand(flags, s),
		newExportCommand(flags, s),
		newDeleteCommand(flags, s),
		newModelsCommand(flags, s),
		newPathsCommand(flags, s),
	)
	return cmd
}

// withApp builds the App for one command run and closes it afterwards.
func withApp(flags *rootFlags, s Streams, fn func(*App) error) error {
	app, err := newApp(appOptions{
		Debug:     flags.debug,
		Plain:     flags.plain,
		Out:       s.Out,
		ErrOut:    s.ErrOut,
		StdoutTTY: s.TTY,
	})
	if err != nil {
		return err
	}
	app.in = s.In
	defer app.Close()
	return fn(app)
}

// Execute runs the command line and returns the exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand(Streams{Out: stdout(), ErrOut: os.Stderr, TTY: IsStdoutTTY()})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(formatError(err)))
		return ExitCode(err)
	}
	return ExitSuccess
}
