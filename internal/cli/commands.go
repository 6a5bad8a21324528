// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/export"
	"github.com/jeranaias/llmcli/internal/ui/styles"
	"github.com/jeranaias/llmcli/internal/util"
)

// slashCommand is one REPL command. run reports whether the loop should end.
type slashCommand struct {
	name    string
	args    string
	summary string
	run     func(l *chatLoop, ctx context.Context, arg string) (quit bool, err error)
}

// slashCommands returns the command table. It is a function so /help can
// refer to it.
func slashCommands() []slashCommand {
	return []slashCommand{
		{"/help", "", "show this help", (*chatLoop).cmdHelp},
		{"/title", "[text]", "show or set the chat title", (*chatLoop).cmdTitle},
		{"/thinking", "", "toggle showing thinking (saved to settings)", (*chatLoop).cmdThinking},
		{"/search", "", "toggle web search", (*chatLoop).cmdSearch},
		{"/model", "<alias>", "switch model for the next turns", (*chatLoop).cmdModel},
		{"/prompt", "<name>", "use another system prompt from the next message", (*chatLoop).cmdPrompt},
		{"/history", "", "print the conversation so far", (*chatLoop).cmdHistory},
		{"/export", "[md|json]", "export the chat to the current directory", (*chatLoop).cmdExport},
		{"/reload", "", "reload settings.toml and models.yaml", (*chatLoop).cmdReload},
		{"/clear", "", "save this chat and start a new one", (*chatLoop).cmdClear},
		{"/quit", "", "save and exit", (*chatLoop).cmdQuit},
	}
}

func slashCommandNames() []string {
	cmds := slashCommands()
	names := make([]string, 0, len(cmds)+1)
	for _, c := range cmds {
		names = append(names, c.name)
	}
	return append(names, "/exit")
}

// command dispatches a line starting with "/".
func (l *chatLoop) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	name = strings.ToLower(name)
	if name == "/exit" {
		name = "/quit"
	}

	for _, c := range slashCommands() {
		if c.name == name {
			return c.run(l, ctx, arg)
		}
	}
	return false, &UsageError{Reason: fmt.Sprintf("unknown command %s (try /help)", name)}
}

func (l *chatLoop) cmdHelp(context.Context, string) (bool, error) {
	for _, c := range slashCommands() {
		usage := c.name
		if c.args != "" {
			usage += " " + c.args
		}
		usage = util.PadRight(usage, 20)
		if l.app.styled() {
			usage = styles.Command.Render(usage)
		}
		fmt.Fprintf(l.app.out, "  %s %s\n", usage, c.summary)
	}
	fmt.Fprintln(l.app.out, "  End a line with \\ to continue the message on the next line.")
	return false, nil
}

func (l *chatLoop) cmdTitle(_ context.Context, arg string) (bool, error) {
	if arg == "" {
		l.printInfo("Title: %s", l.chat.Title())
		return false, nil
	}
	l.chat.SetTitle(util.TruncateWidth(util.CollapseWhitespace(arg), l.app.settings.Chat.TitleMaxLength))
	// A title chosen by hand is never replaced by a generated one.
	l.chat.Metadata.SmartTitleGenerated = true
	l.printInfo("Title set to: %s", l.chat.Title())
	return false, l.save()
}

func (l *chatLoop) cmdThinking(context.Context, string) (bool, error) {
	l.opts.ShowThinking = !l.opts.ShowThinking
	show := l.opts.ShowThinking
	l.printInfo("Thinking display %s", onOff(show))
	return false, l.app.loader.Update(func(s *config.Settings) { s.UI.ShowThinking = show })
}

func (l *chatLoop) cmdSearch(context.Context, string) (bool, error) {
	l.opts.EnableSearch = !l.opts.EnableSearch
	l.printInfo("Search %s", onOff(l.opts.EnableSearch))
	return false, nil
}

func (l *chatLoop) cmdModel(_ context.Context, arg string) (bool, error) {
	if arg == "" {
		l.printInfo("Model: %s", l.alias)
		return false, nil
	}
	if _, _, err := l.app.registry.Resolve(arg); err != nil {
		return false, err
	}
	l.alias = arg
	l.chat.SetModel(arg)
	l.app.log.Info().Str("chat_id", l.chat.ID()).Str("model", arg).Msg("model switched")
	l.printInfo("Switched to %s", arg)
	return false, nil
}

func (l *chatLoop) cmdPrompt(_ context.Context, arg string) (bool, error) {
	if arg == "" {
		l.printInfo("Available prompts: %s", strings.Join(config.ListPrompts(l.app.paths.PromptsDir), ", "))
		return false, nil
	}
	prompt, err := config.LoadPrompt(l.app.paths.PromptsDir, arg)
	if err != nil {
		return false, err
	}
	l.chat.SetSystemPrompt(prompt)
	l.system = prompt
	l.printInfo("System prompt %q applies from your next message", arg)
	return false, nil
}

func (l *chatLoop) cmdHistory(context.Context, string) (bool, error) {
	l.app.replay(l.chat)
	return false, nil
}

func (l *chatLoop) cmdExport(_ context.Context, arg string) (bool, error) {
	if !l.chat.ShouldBeSaved() {
		return false, &UsageError{Reason: "nothing to export yet"}
	}
	opts := export.DefaultOptions()
	exporter, err := export.ForFormat(arg, opts)
	if err != nil {
		return false, &UsageError{Reason: err.Error()}
	}
	path, err := export.ExportToFile(l.chat, exporter, opts)
	if err != nil {
		return false, err
	}
	l.printInfo("Exported to %s", path)
	return false, nil
}

func (l *chatLoop) cmdReload(context.Context, string) (bool, error) {
	if err := l.app.loader.Reload(); err != nil {
		return false, err
	}
	s, err := l.app.loader.Settings()
	if err != nil {
		return false, err
	}
	l.app.applySettings(s)
	l.printInfo("Configuration reloaded")
	return false, nil
}

func (l *chatLoop) cmdClear(context.Context, string) (bool, error) {
	if err := l.save(); err != nil {
		return false, err
	}
	l.chat = l.app.manager.CreateNewChat(l.alias, l.system)
	l.printInfo("Started a new chat")
	return false, nil
}

func (l *chatLoop) cmdQuit(context.Context, string) (bool, error) {
	return true, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
