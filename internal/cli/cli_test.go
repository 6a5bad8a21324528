// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/session"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const testModelsYAML = `
fake:
  echo:
    supports_thinking: false
aliases:
  default: fake/echo
  e: fake/echo
`

// echoProvider answers every request with the last user message.
type echoProvider struct {
	fail  error
	calls int
}

func (p *echoProvider) Name() string                          { return "fake" }
func (p *echoProvider) Capabilities(string) llm.Capabilities  { return llm.Capabilities{} }
func (p *echoProvider) Stream(_ context.Context, msgs []model.Message, _ string, _ llm.Options) (llm.Stream, error) {
	p.calls++
	if p.fail != nil {
		return nil, p.fail
	}
	last := msgs[len(msgs)-1].Text()
	return llm.StreamOf(llm.TextDelta("echo: "+last), llm.End(nil)), nil
}

// scriptedReader returns lines in order, then ErrInputAborted.
type scriptedReader struct {
	lines []string
}

func (r *scriptedReader) ReadMessage(string) (string, error) {
	if len(r.lines) == 0 {
		return "", ErrInputAborted
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("LLMCLI_CONFIG_DIR", t.TempDir())
	t.Setenv("LLMCLI_DATA_DIR", t.TempDir())
	t.Setenv("LLMCLI_CHAT_DIR", "")
	t.Setenv("LLM_CLI_CHAT_DIR", "")
	t.Setenv("LLMCLI_MODEL", "")
}

func testApp(t *testing.T, p llm.Provider, chat config.ChatSettings) (*App, *bytes.Buffer) {
	t.Helper()
	isolate(t)

	table, err := config.ParseModels([]byte(testModelsYAML), nil)
	require.NoError(t, err)

	loader := config.NewLoader(os.Getenv("LLMCLI_CONFIG_DIR"))
	settings, err := loader.Settings()
	require.NoError(t, err)
	paths, err := config.ResolvePaths(loader.Dir(), settings)
	require.NoError(t, err)

	var out bytes.Buffer
	reg := llm.NewRegistry(llm.StaticModels{Table: table})
	reg.RegisterProvider(p)
	client := llm.NewClient(reg,
		llm.WithOutput(&out),
		llm.WithRendererKind(llm.RendererPlain),
		llm.WithRetryPolicy(llm.RetryPolicy{MaxAttempts: 1, MinDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	mgr, err := session.NewManager(paths.ChatDir, session.WithChatSettings(chat))
	require.NoError(t, err)

	return &App{
		loader:   loader,
		settings: settings,
		paths:    paths,
		log:      zerolog.Nop(),
		registry: reg,
		client:   client,
		manager:  mgr,
		kind:     llm.RendererPlain,
		out:      &out,
		errOut:   &out,
	}, &out
}

func newLoop(a *App, lines ...string) *chatLoop {
	return &chatLoop{
		app:           a,
		chat:          a.manager.CreateNewChat("e", "Be brief."),
		alias:         "e",
		system:        "Be brief.",
		input:         &scriptedReader{lines: lines},
		interruptible: context.WithCancel,
		opts:          llm.DefaultOptions(),
	}
}

func defaultChatSettings() config.ChatSettings {
	return config.Default().Chat
}

// =============================================================================
// CHAT LOOP TESTS
// =============================================================================

func TestChatLoop_TurnAppendsTitlesAndSaves(t *testing.T) {
	p := &echoProvider{}
	a, out := testApp(t, p, defaultChatSettings())
	loop := newLoop(a, "hello\nthere", "   ", "second")

	require.NoError(t, loop.run(context.Background()))
	assert.Equal(t, 2, p.calls, "blank input is ignored")
	assert.Contains(t, out.String(), "AI: echo: hello\nthere")

	loaded, err := a.manager.LoadChat(loop.chat.ID())
	require.NoError(t, err)
	assert.Equal(t, "hello there", loaded.Title())
	assert.Equal(t, 4, loaded.NonSystemCount())
	assert.Equal(t, "Be brief.", loaded.SystemPrompt())
}

func TestChatLoop_ProviderFailureKeepsUserMessage(t *testing.T) {
	p := &echoProvider{fail: llm.NewProviderError("fake", 400, "bad request")}
	a, out := testApp(t, p, defaultChatSettings())
	loop := newLoop(a, "hello")

	require.NoError(t, loop.run(context.Background()))
	assert.Contains(t, out.String(), "Error: ")

	loaded, err := a.manager.LoadChat(loop.chat.ID())
	require.NoError(t, err)
	msgs := loaded.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
}

func TestChatLoop_InterruptedTurnNotAppended(t *testing.T) {
	p := &echoProvider{}
	a, out := testApp(t, p, defaultChatSettings())
	loop := newLoop(a, "hello")
	loop.interruptible = func(ctx context.Context) (context.Context, context.CancelFunc) {
		c, cancel := context.WithCancel(ctx)
		cancel()
		return c, cancel
	}

	require.NoError(t, loop.run(context.Background()))
	assert.Contains(t, out.String(), "[interrupted]")

	loaded, err := a.manager.LoadChat(loop.chat.ID())
	require.NoError(t, err)
	require.Len(t, loaded.Messages(), 1)
	assert.Equal(t, model.RoleUser, loaded.Messages()[0].Role)
}

func TestChatLoop_SmartTitleAfterThreshold(t *testing.T) {
	p := &echoProvider{}
	settings := defaultChatSettings()
	settings.SmartTitleMinMessages = 2
	a, _ := testApp(t, p, settings)
	loop := newLoop(a, "hello", "again")

	require.NoError(t, loop.run(context.Background()))
	assert.Equal(t, 3, p.calls, "two turns plus one title request")
	assert.True(t, loop.chat.Metadata.SmartTitleGenerated)
}

func TestChatLoop_InterruptedSmartTitleStillRecorded(t *testing.T) {
	p := &echoProvider{}
	settings := defaultChatSettings()
	settings.SmartTitleMinMessages = 2
	a, _ := testApp(t, p, settings)
	loop := newLoop(a, "hello")

	calls := 0
	loop.interruptible = func(ctx context.Context) (context.Context, context.CancelFunc) {
		calls++
		c, cancel := context.WithCancel(ctx)
		if calls == 2 {
			cancel()
		}
		return c, cancel
	}

	require.NoError(t, loop.run(context.Background()))
	assert.Equal(t, 2, calls, "the title request gets its own interrupt scope")

	loaded, err := a.manager.LoadChat(loop.chat.ID())
	require.NoError(t, err)
	assert.True(t, loaded.Metadata.SmartTitleGenerated)
	assert.Equal(t, "hello", loaded.Title())
	assert.Len(t, loaded.Messages(), 2)
}

func TestChatLoop_AbortOnEmptyChatSavesNothing(t *testing.T) {
	a, _ := testApp(t, &echoProvider{}, defaultChatSettings())
	loop := newLoop(a)

	require.NoError(t, loop.run(context.Background()))
	chats, err := a.manager.ListChats()
	require.NoError(t, err)
	assert.Empty(t, chats)
}

// =============================================================================
// SLASH COMMAND TESTS
// =============================================================================

func TestSlashCommands(t *testing.T) {
	a, out := testApp(t, &echoProvider{}, defaultChatSettings())
	loop := newLoop(a, "hi")
	ctx := context.Background()
	require.NoError(t, loop.turn(ctx, "hi"))

	quit, err := loop.command(ctx, "/title  My   chat ")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, "My chat", loop.chat.Title())
	assert.True(t, loop.chat.Metadata.SmartTitleGenerated)

	_, err = loop.command(ctx, "/search")
	require.NoError(t, err)
	assert.True(t, loop.opts.EnableSearch)

	_, err = loop.command(ctx, "/model nope")
	assert.ErrorIs(t, err, llm.ErrModelNotFound)
	assert.Equal(t, "e", loop.alias)

	_, err = loop.command(ctx, "/model echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", loop.chat.Model())

	_, err = loop.command(ctx, "/prompt code")
	require.NoError(t, err)
	assert.NotEmpty(t, loop.chat.PendingSystemPrompt())

	_, err = loop.command(ctx, "/bogus")
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)

	quit, err = loop.command(ctx, "/exit")
	require.NoError(t, err)
	assert.True(t, quit)

	out.Reset()
	_, err = loop.command(ctx, "/help")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "/history")
}

func TestSlashCommands_ThinkingPersists(t *testing.T) {
	a, _ := testApp(t, &echoProvider{}, defaultChatSettings())
	loop := newLoop(a)
	require.True(t, loop.opts.ShowThinking)

	_, err := loop.command(context.Background(), "/thinking")
	require.NoError(t, err)
	assert.False(t, loop.opts.ShowThinking)

	s, err := a.loader.Settings()
	require.NoError(t, err)
	assert.False(t, s.UI.ShowThinking)
}

func TestSlashCommands_ReloadAppliesRetryAndChatSettings(t *testing.T) {
	a, _ := testApp(t, &echoProvider{}, defaultChatSettings())
	loop := newLoop(a)

	require.NoError(t, os.WriteFile(a.loader.SettingsPath(), []byte(`
[retry]
max_attempts = 5

[chat]
smart_title_min_messages = 4
`), 0o600))

	_, err := loop.command(context.Background(), "/reload")
	require.NoError(t, err)
	assert.Equal(t, 5, a.client.RetryPolicy().MaxAttempts)
	assert.Equal(t, 4, a.manager.ChatSettings().SmartTitleMinMessages)
	assert.Equal(t, 5, a.settings.Retry.MaxAttempts)
}

func TestSlashCommands_ClearStartsNewChat(t *testing.T) {
	a, _ := testApp(t, &echoProvider{}, defaultChatSettings())
	loop := newLoop(a)
	ctx := context.Background()
	require.NoError(t, loop.turn(ctx, "first"))
	firstID := loop.chat.ID()

	_, err := loop.command(ctx, "/clear")
	require.NoError(t, err)
	assert.Zero(t, loop.chat.NonSystemCount())
	assert.Equal(t, "Be brief.", loop.chat.PendingSystemPrompt())
	assert.True(t, a.manager.Store().Exists(firstID))
}

// =============================================================================
// SELECTION TESTS
// =============================================================================

func TestSelectChat(t *testing.T) {
	a, out := testApp(t, &echoProvider{}, defaultChatSettings())

	chat := a.manager.CreateNewChat("e", "")
	chat.AppendUserMessage("saved")
	require.NoError(t, chat.Save())

	got, idArg, err := a.selectChat(context.Background(), &rootFlags{resume: chat.ID()}, nil)
	require.NoError(t, err)
	assert.False(t, idArg)
	assert.Equal(t, chat.ID(), got.ID())

	got, idArg, err = a.selectChat(context.Background(), &rootFlags{resume: resumeSelect}, []string{chat.ID()})
	require.NoError(t, err)
	assert.True(t, idArg, "-r <id> consumes the positional id")
	assert.Equal(t, chat.ID(), got.ID())

	got, _, err = a.selectChat(context.Background(), &rootFlags{resume: "missing"}, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Contains(t, out.String(), "Chat not found: missing")

	got, _, err = a.selectChat(context.Background(), &rootFlags{cont: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, chat.ID(), got.ID())
}

// =============================================================================
// INPUT / TERMINAL / ERROR TESTS
// =============================================================================

func TestReadContinued(t *testing.T) {
	lines := []string{`first \`, `second\`, "third", "next message"}
	var prompts []string
	next := func(p string) (string, error) {
		prompts = append(prompts, p)
		line := lines[0]
		lines = lines[1:]
		return line, nil
	}

	text, err := readContinued(next, UserPrompt)
	require.NoError(t, err)
	assert.Equal(t, "first \nsecond\nthird", text)
	assert.Equal(t, []string{UserPrompt, ContinuationPrompt, ContinuationPrompt}, prompts)

	_, err = readContinued(func(string) (string, error) { return "", io.EOF }, UserPrompt)
	assert.ErrorIs(t, err, io.EOF)
}

func TestColorsEnabled(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	assert.False(t, ColorsEnabled(env(map[string]string{"NO_COLOR": "1", "FORCE_COLOR": "1"}), true))
	assert.True(t, ColorsEnabled(env(map[string]string{"FORCE_COLOR": "1"}), false))
	assert.True(t, ColorsEnabled(env(nil), true))
	assert.False(t, ColorsEnabled(env(nil), false))
}

func TestResolveRenderer(t *testing.T) {
	tests := []struct {
		setting string
		plain   bool
		colors  bool
		want    llm.RendererKind
	}{
		{"auto", false, true, llm.RendererStyled},
		{"auto", false, false, llm.RendererPlain},
		{"styled", false, false, llm.RendererStyled},
		{"styled", true, true, llm.RendererPlain},
		{"plain", false, true, llm.RendererPlain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveRenderer(tt.setting, tt.plain, tt.colors), "%+v", tt)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{&UsageError{Reason: "x"}, ExitUsageError},
		{&config.ConfigError{Err: errors.New("no key")}, ExitConfigError},
		{fmt.Errorf("wrap: %w", llm.NewProviderError("openai", 401, "bad key")), ExitAuthError},
		{&llm.ModelNotFoundError{Alias: "x"}, ExitNotFoundError},
		{fmt.Errorf("%w: abc", session.ErrChatNotFound), ExitNotFoundError},
		{context.DeadlineExceeded, ExitNetworkError},
		{errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCommand(Streams{Out: &buf, ErrOut: &buf})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func savedChat(t *testing.T, title string) *session.Chat {
	t.Helper()
	dataDir := os.Getenv("LLMCLI_DATA_DIR")
	mgr, err := session.NewManager(filepath.Join(dataDir, config.ChatsDirName))
	require.NoError(t, err)

	chat := mgr.CreateNewChat("sonnet", "You are helpful.")
	chat.SetTitle(title)
	chat.AppendUserMessage("What is Go?")
	chat.AppendAssistantText("A programming language.", false)
	require.NoError(t, chat.Save())
	return chat
}

func TestCommands_ListShowExportDelete(t *testing.T) {
	isolate(t)
	chat := savedChat(t, "Go questions")

	out, err := runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, chat.ID())
	assert.Contains(t, out, "Go questions")

	out, err = runCommand(t, "list", "nothing-matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No chats found.")

	out, err = runCommand(t, "show", chat.ID())
	require.NoError(t, err)
	assert.Contains(t, out, "Human: What is Go?")
	assert.Contains(t, out, "AI: A programming language.")

	dir := t.TempDir()
	out, err = runCommand(t, "export", chat.ID(), "-f", "json", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported to")
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	assert.Len(t, matches, 1)

	_, err = runCommand(t, "delete", chat.ID())
	require.NoError(t, err)
	_, err = runCommand(t, "show", chat.ID())
	assert.ErrorIs(t, err, session.ErrChatNotFound)
}

func TestCommands_ModelsAndPaths(t *testing.T) {
	isolate(t)

	out, err := runCommand(t, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "sonnet")
	assert.Contains(t, out, "anthropic")
	assert.True(t, strings.Contains(out, " *"), "default alias is marked")

	out, err = runCommand(t, "paths")
	require.NoError(t, err)
	assert.Contains(t, out, os.Getenv("LLMCLI_CONFIG_DIR"))
	assert.Contains(t, out, "Chat storage:")
}

func TestCommands_ExportUnknownFormat(t *testing.T) {
	isolate(t)
	chat := savedChat(t, "x")

	_, err := runCommand(t, "export", chat.ID(), "-f", "pdf", "-o", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// CONFIG WATCH TESTS
// =============================================================================

func TestWatchConfig_ModelsEditTakesEffect(t *testing.T) {
	a, _ := testApp(t, &echoProvider{}, defaultChatSettings())
	require.NoError(t, os.WriteFile(a.loader.ModelsPath(), []byte(testModelsYAML), 0o600))
	a.registry = llm.NewRegistry(a.loader)
	a.registry.RegisterProvider(&echoProvider{})

	searchEnabled := func() bool {
		table, err := a.registry.Models()
		return err == nil && table.Capabilities("fake", "echo").SupportsSearch
	}
	_, _, err := a.registry.Resolve("e")
	require.NoError(t, err)
	require.False(t, searchEnabled())

	stop := a.watchConfig(context.Background())
	defer stop()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	edited := strings.Replace(testModelsYAML, "supports_thinking: false", "supports_search: true", 1)
	require.NoError(t, os.WriteFile(a.loader.ModelsPath(), []byte(edited), 0o600))

	assert.Eventually(t, searchEnabled, 2*time.Second, 20*time.Millisecond)
}
