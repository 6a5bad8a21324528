// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/logging"
	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/session"
	"github.com/jeranaias/llmcli/internal/ui/picker"
	"github.com/jeranaias/llmcli/internal/ui/styles"
)

// UserPrompt is the input prompt. liner measures the prompt itself, so it
// carries no color.
const UserPrompt = "Human: "

var errPickerCancelled = errors.New("chat selection cancelled")

// messageReader reads one user message. LineReader implements it.
type messageReader interface {
	ReadMessage(prompt string) (string, error)
}

// interruptOnSignal returns a context cancelled by Ctrl+C. The signal
// subscription ends when the returned cancel func is called.
func interruptOnSignal(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// =============================================================================
// STARTUP
// =============================================================================

// runChat resolves the chat to use and runs the read-send loop until the
// user quits.
func (a *App) runChat(ctx context.Context, flags *rootFlags, modelSet bool, args []string) error {
	chat, idArg, err := a.selectChat(ctx, flags, args)
	if errors.Is(err, errPickerCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	if idArg {
		args = nil
	}

	promptName := a.settings.Chat.DefaultPrompt
	if len(args) > 0 {
		promptName = args[0]
	}
	systemPrompt, err := config.LoadPrompt(a.paths.PromptsDir, promptName)
	if err != nil {
		return err
	}

	alias, err := a.defaultAlias(flags.model)
	if err != nil {
		return err
	}
	if chat != nil && !modelSet && chat.Model() != "" {
		alias = chat.Model()
	}
	if _, _, err := a.registry.Resolve(alias); err != nil {
		return err
	}

	resumed := chat != nil
	if resumed {
		chat.SetModel(alias)
	} else {
		chat = a.manager.CreateNewChat(alias, systemPrompt)
	}
	a.log.Info().Str("chat_id", chat.ID()).Str("model", alias).Bool("resumed", resumed).Msg("chat started")

	a.printIntro(chat, systemPrompt, resumed)

	reader := NewLineReader(a.paths.HistoryFile, a.log)
	reader.SetCompletions(slashCommandNames())
	defer func() {
		if err := reader.Close(); err != nil {
			a.log.Debug().Err(err).Msg("could not save input history")
		}
	}()

	stopWatch := a.watchConfig(ctx)
	defer stopWatch()

	loop := &chatLoop{
		app:           a,
		chat:          chat,
		alias:         alias,
		system:        systemPrompt,
		input:         reader,
		interruptible: interruptOnSignal,
		opts: llm.Options{
			EnableSearch:   flags.search,
			EnableThinking: a.settings.UI.EnableThinking && !flags.noThinking,
			ShowThinking:   a.settings.UI.ShowThinking && !flags.noThinking && !flags.hideThinking,
		},
	}
	return loop.run(ctx)
}

// selectChat returns the chat to resume, or nil for a new chat. idArg
// reports that args[0] was consumed as a chat id ("-r <id>").
func (a *App) selectChat(ctx context.Context, flags *rootFlags, args []string) (chat *session.Chat, idArg bool, err error) {
	switch {
	case flags.resume == resumeSelect && len(args) == 1 && a.manager.Store().Exists(args[0]):
		chat, err = a.loadOrAnnounce(args[0])
		return chat, true, err

	case flags.resume == resumeSelect:
		chat, err = a.pickChat(ctx)
		return chat, false, err

	case flags.resume != "":
		chat, err = a.loadOrAnnounce(flags.resume)
		return chat, false, err

	case flags.cont:
		chat, err = a.manager.GetLastChat()
		if err != nil {
			return nil, false, err
		}
		if chat == nil {
			fmt.Fprintln(a.out, "No previous chats found. Starting new chat...")
		}
		return chat, false, nil
	}
	return nil, false, nil
}

// loadOrAnnounce loads id; a missing chat is reported and yields nil.
func (a *App) loadOrAnnounce(id string) (*session.Chat, error) {
	chat, err := a.manager.LoadChat(id)
	if errors.Is(err, session.ErrChatNotFound) {
		fmt.Fprintf(a.out, "Chat not found: %s. Starting new chat...\n", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "Loaded chat: %s\n", chat.Title())
	return chat, nil
}

func (a *App) pickChat(ctx context.Context) (*session.Chat, error) {
	if a.in == nil && !IsTTY() {
		return nil, &UsageError{Reason: "the chat picker needs a terminal; use --resume=<id>"}
	}
	chats, err := a.manager.ListChats()
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		fmt.Fprintln(a.out, "No saved chats. Starting new chat...")
		return nil, nil
	}

	id, err := picker.Run(ctx, chats, a.manager.DeleteChat, a.in, a.out)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errPickerCancelled
	}
	return a.manager.LoadChat(id)
}

// defaultAlias applies -m, then settings, then the models.yaml default.
func (a *App) defaultAlias(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.settings.DefaultModel != "" {
		return a.settings.DefaultModel, nil
	}
	models, err := a.loader.Models()
	if err != nil {
		return "", err
	}
	return models.Default(), nil
}

func (a *App) printIntro(chat *session.Chat, systemPrompt string, resumed bool) {
	if !resumed {
		fmt.Fprintf(a.out, "Starting new %s chat session. Press Ctrl+C to exit. End a line with \\ to continue it.\n", chat.Model())
		a.printSystem("System:", systemPrompt)
		return
	}

	if chat.Metadata.MessageCount > 2 {
		fmt.Fprintf(a.out, "Continuing chat: %s (%s, %d messages)\n", chat.Title(), chat.Model(), chat.Metadata.MessageCount)
		fmt.Fprintln(a.out, "Press Ctrl+C to exit. End a line with \\ to continue it.")
	}
	if sys := chat.SystemPrompt(); sys != systemPrompt {
		a.printSystem("System (from chat):", sys)
	} else {
		a.printSystem("System:", systemPrompt)
	}
	a.replay(chat)
}

func (a *App) printSystem(label, prompt string) {
	if a.styled() {
		label = styles.SystemLabel.Render(label)
	}
	fmt.Fprintf(a.out, "%s %s\n", label, prompt)
}

// =============================================================================
// LOOP
// =============================================================================

// chatLoop is the interactive session. It is driven from one goroutine; the
// chat is only mutated between turns.
type chatLoop struct {
	app    *App
	chat   *session.Chat
	alias  string
	opts   llm.Options
	system string
	input  messageReader

	// interruptible derives the context for one turn.
	interruptible func(context.Context) (context.Context, context.CancelFunc)
}

func (l *chatLoop) run(ctx context.Context) error {
	for {
		text, err := l.input.ReadMessage(UserPrompt)
		if err != nil {
			if errors.Is(err, ErrInputAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(l.app.out)
				return l.save()
			}
			return err
		}

		trimmed := strings.TrimSpace(text)
		switch {
		case trimmed == "":
			continue

		case strings.HasPrefix(trimmed, "/"):
			quit, err := l.command(ctx, trimmed)
			if err != nil {
				l.printError(err)
			}
			if quit {
				return l.save()
			}

		default:
			if err := l.turn(ctx, text); err != nil {
				l.printError(err)
			}
		}

		if ctx.Err() != nil {
			return l.save()
		}
	}
}

// turn sends text and records the answer. On failure or interruption the
// user message stays without an answer so the chat remains resumable.
func (l *chatLoop) turn(ctx context.Context, text string) error {
	defer logging.TraceDuration(l.app.log, "chatLoop.turn")()
	l.app.refreshSettings()

	l.chat.AppendUserMessage(text)
	fmt.Fprint(l.app.out, l.label(model.RoleAssistant))

	turnCtx, stop := l.interruptible(ctx)
	resp, err := l.app.client.Chat(turnCtx, l.chat.Messages(), l.alias, l.opts)
	stop()

	if err != nil {
		fmt.Fprintln(l.app.out)
		return errors.Join(err, l.save())
	}
	if resp.Interrupted {
		fmt.Fprintln(l.app.out, l.muted("[interrupted]"))
		l.app.log.Info().Str("chat_id", l.chat.ID()).Msg("turn interrupted")
		return l.save()
	}

	l.chat.AppendAssistantResponse(resp.Message, false)
	l.app.manager.ApplyFirstExchangeTitle(l.chat)
	if err := l.save(); err != nil {
		return err
	}

	if l.app.manager.ShouldGenerateSmartTitle(l.chat) {
		return l.smartTitle(ctx)
	}
	return nil
}

// smartTitle runs the title request under its own interrupt subscription so
// Ctrl+C only abandons the title. The chat is saved either way, which keeps
// the generated flag from being lost.
func (l *chatLoop) smartTitle(ctx context.Context) error {
	titleCtx, stop := l.interruptible(ctx)
	err := l.app.manager.GenerateSmartTitle(titleCtx, l.chat, l.app.client, l.titleModel())
	stop()
	if err != nil {
		l.app.log.Debug().Err(err).Str("chat_id", l.chat.ID()).Msg("smart title not updated")
	}
	return l.save()
}

func (l *chatLoop) save() error {
	if err := l.chat.Save(); err != nil {
		l.app.log.Error().Err(err).Str("chat_id", l.chat.ID()).Msg("save failed")
		return err
	}
	return nil
}

func (l *chatLoop) titleModel() string {
	if m := l.app.settings.Chat.TitleModel; m != "" {
		return m
	}
	return l.alias
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func (l *chatLoop) label(role model.Role) string {
	return roleLabel(role, l.app.styled())
}

func roleLabel(role model.Role, styled bool) string {
	text := role.DisplayName() + ":"
	if !styled {
		return text + " "
	}
	switch role {
	case model.RoleUser:
		return styles.UserLabel.Render(text) + " "
	case model.RoleAssistant:
		return styles.AssistantLabel.Render(text) + " "
	default:
		return styles.SystemLabel.Render(text) + " "
	}
}

func (l *chatLoop) muted(s string) string {
	if l.app.styled() {
		return styles.Muted.Render(s)
	}
	return s
}

func (l *chatLoop) printError(err error) {
	msg := formatError(err)
	if l.app.styled() {
		msg = styles.RenderError(msg)
	} else {
		msg = "Error: " + msg
	}
	fmt.Fprintln(l.app.errOut, msg)
}

func (l *chatLoop) printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.app.styled() {
		msg = styles.RenderInfo(msg)
	}
	fmt.Fprintln(l.app.out, msg)
}
