// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/export"
	"github.com/jeranaias/llmcli/internal/storage"
	"github.com/jeranaias/llmcli/internal/ui/styles"
	"github.com/jeranaias/llmcli/internal/util"
)

// =============================================================================
// LIST / SHOW / DELETE
// =============================================================================

func newListCommand(flags *rootFlags, s Streams) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List saved chats, newest first, optionally filtered by title or preview",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, s, func(a *App) error {
				var chats []storage.Metadata
				var err error
				if len(args) == 1 {
					chats, err = a.manager.SearchChats(args[0])
				} else {
					chats, err = a.manager.ListChats()
				}
				if err != nil {
					return err
				}
				if limit > 0 && len(chats) > limit {
					chats = chats[:limit]
				}
				a.printChatList(chats, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n chats")
	return cmd
}

func (a *App) printChatList(chats []storage.Metadata, now time.Time) {
	if len(chats) == 0 {
		fmt.Fprintln(a.out, "No chats found.")
		return
	}

	rows := make([][]string, 0, len(chats))
	for _, c := range chats {
		rows = append(rows, []string{
			c.ID,
			humanize.RelTime(c.UpdatedAt.Time, now, "ago", "from now"),
			fmt.Sprint(c.MessageCount),
			c.Model,
			util.TruncateWidth(util.CollapseWhitespace(c.Title), 50),
		})
	}
	a.printTable([]string{"ID", "UPDATED", "MSGS", "MODEL", "TITLE"}, rows)
}

func newShowCommand(flags *rootFlags, s Streams) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, s, func(a *App) error {
				chat, err := a.manager.LoadChat(args[0])
				if err != nil {
					return err
				}
				title := chat.Title()
				if a.styled() {
					title = styles.Title.Render(title)
				}
				fmt.Fprintln(a.out, title)
				fmt.Fprintf(a.out, "%s, %d messages, updated %s\n\n",
					chat.Model(), chat.Metadata.MessageCount, chat.Metadata.UpdatedAt.Format("2006-01-02 15:04"))
				if sys := chat.SystemPrompt(); sys != "" {
					a.printSystem("System:", sys)
				}
				a.replay(chat)
				return nil
			})
		},
	}
}

func newDeleteCommand(flags *rootFlags, s Streams) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Move saved chats to the trash directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, s, func(a *App) error {
				for _, id := range args {
					if err := a.manager.DeleteChat(id); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "Deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(flags *rootFlags, s Streams) *cobra.Command {
	opts := export.DefaultOptions()
	var format string
	var noThinking bool

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved chat as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, s, func(a *App) error {
				chat, err := a.manager.LoadChat(args[0])
				if err != nil {
					return err
				}
				opts.IncludeThinking = !noThinking
				exporter, err := export.ForFormat(format, opts)
				if err != nil {
					return &UsageError{Reason: err.Error()}
				}
				path, err := export.ExportToFile(chat, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Exported to %s\n", path)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "md", "output format: md or json")
	f.StringVarP(&opts.OutputDir, "output", "o", ".", "output directory")
	f.BoolVar(&opts.OpenAfterExport, "open", false, "open the file after exporting")
	f.BoolVar(&opts.IncludeTimestamps, "timestamps", false, "add message times to Markdown")
	f.BoolVar(&noThinking, "no-thinking", false, "leave thinking traces out of Markdown")
	return cmd
}

// =============================================================================
// MODELS / PATHS
// =============================================================================

func newModelsCommand(flags *rootFlags, s Streams) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model aliases and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, s, func(a *App) error {
				models, err := a.loader.Models()
				if err != nil {
					return err
				}
				def, _ := a.defaultAlias("")
				defRef, _ := models.Resolve(def)

				var rows [][]string
				for _, alias := range models.Aliases() {
					ref, _ := models.Resolve(alias)
					caps := models.Capabilities(ref.Provider, ref.ModelID)
					name := alias
					if ref == defRef {
						name += " *"
					}
					rows = append(rows, []string{
						name, ref.Provider, ref.ModelID,
						yesNo(caps.SupportsThinking), yesNo(caps.SupportsSearch),
					})
				}
				a.printTable([]string{"ALIAS", "PROVIDER", "MODEL", "THINKING", "SEARCH"}, rows)
				fmt.Fprintf(a.out, "\n* default. Any configured model id is also accepted.\n")
				return nil
			})
		},
	}
}

func newPathsCommand(flags *rootFlags, s Streams) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print config and data locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, s, func(a *App) error {
				return a.printPaths()
			})
		},
	}
}

func (a *App) printPaths() error {
	p := a.paths
	fmt.Fprintf(a.out, "Configuration directory: %s\n", p.ConfigDir)
	fmt.Fprintf(a.out, "  - Settings: %s\n", p.SettingsFile)
	fmt.Fprintf(a.out, "  - Model overrides: %s\n", p.ModelsFile)
	fmt.Fprintf(a.out, "  - Prompts: %s/ (%s)\n", p.PromptsDir, config.PromptFileName("<name>"))
	fmt.Fprintf(a.out, "Data directory: %s\n", p.DataDir)
	fmt.Fprintf(a.out, "  - Chat storage: %s\n", p.ChatDir)
	fmt.Fprintf(a.out, "  - Input history: %s\n", p.HistoryFile)
	fmt.Fprintf(a.out, "  - Log file: %s\n", p.LogFile)

	fmt.Fprintln(a.out, "\nEnvironment variable overrides:")
	for _, name := range []string{"LLMCLI_CONFIG_DIR", "LLMCLI_DATA_DIR", "LLMCLI_CHAT_DIR", "LLM_CLI_CHAT_DIR", "LLMCLI_MODEL"} {
		v := os.Getenv(name)
		if v == "" {
			v = "not set"
		}
		fmt.Fprintf(a.out, "  - %s: %s\n", name, v)
	}

	fmt.Fprintln(a.out, "\nCurrent status:")
	for _, path := range []string{p.ConfigDir, p.SettingsFile, p.PromptsDir, p.ModelsFile, p.ChatDir} {
		mark := "✗"
		if _, err := os.Stat(path); err == nil {
			mark = "✓"
		}
		fmt.Fprintf(a.out, "  %s %s\n", mark, path)
	}
	return nil
}

// =============================================================================
// TABLE OUTPUT
// =============================================================================

// printTable renders rows as a bordered table when styled, aligned columns
// otherwise.
func (a *App) printTable(headers []string, rows [][]string) {
	if a.styled() {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(styles.Separator).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return styles.Title.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		fmt.Fprintln(a.out, t.Render())
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	line := func(cells []string) {
		padded := make([]string, len(cells))
		for i, c := range cells {
			padded[i] = util.PadRight(c, widths[i])
		}
		fmt.Fprintln(a.out, strings.TrimRight(strings.Join(padded, "  "), " "))
	}
	line(headers)
	for _, r := range rows {
		line(r)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
