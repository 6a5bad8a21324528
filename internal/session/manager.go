// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/llm"
	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/storage"
	"github.com/jeranaias/llmcli/internal/util"
)

const titleSystemPrompt = "Generate a concise 5-10 word title for this conversation. No quotes, no punctuation, just the title."

// Chatter is the part of llm.Client the manager needs.
type Chatter interface {
	Chat(ctx context.Context, messages []model.Message, alias string, opts llm.Options) (*llm.Response, error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager handles chat lifecycle on top of a Store.
type Manager struct {
	store    *storage.Store
	settings config.ChatSettings
	log      zerolog.Logger
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithChatSettings overrides title thresholds and lengths.
func WithChatSettings(s config.ChatSettings) ManagerOption {
	return func(m *Manager) { m.settings = s }
}

// NewManager opens the chat directory, creating it if needed.
func NewManager(chatDir string, opts ...ManagerOption) (*Manager, error) {
	store, err := storage.NewStore(chatDir)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:    store,
		settings: config.Default().Chat,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SetChatSettings replaces title thresholds and lengths.
func (m *Manager) SetChatSettings(s config.ChatSettings) { m.settings = s }

// ChatSettings returns the title thresholds and lengths in use.
func (m *Manager) ChatSettings() config.ChatSettings { return m.settings }

// Path returns the chat directory.
func (m *Manager) Path() string { return m.store.BaseDir }

// Store exposes the underlying store.
func (m *Manager) Store() *storage.Store { return m.store }

// =============================================================================
// LIFECYCLE
// =============================================================================

// CreateNewChat starts an unsaved chat. The system prompt is bound to the
// first user message.
func (m *Manager) CreateNewChat(modelAlias, systemPrompt string) *Chat {
	now := m.now()
	meta := storage.Metadata{
		ID:        NewChatID(now),
		Title:     DefaultTitle(now),
		CreatedAt: storage.Timestamp{Time: now},
		UpdatedAt: storage.Timestamp{Time: now},
		Model:     modelAlias,
	}
	chat := newChat(m.store, meta, nil)
	chat.SetSystemPrompt(systemPrompt)

	m.log.Debug().Str("chat_id", meta.ID).Str("model", modelAlias).Msg("chat created")
	return chat
}

// ListChats returns every readable chat, newest first. Unreadable chats
// are logged and skipped.
func (m *Manager) ListChats() ([]storage.Metadata, error) {
	return m.store.List(m.logSkip)
}

// SearchChats filters ListChats by title or preview.
func (m *Manager) SearchChats(query string) ([]storage.Metadata, error) {
	return m.store.Search(query, m.logSkip)
}

func (m *Manager) logSkip(id string, err error) {
	m.log.Warn().Err(err).Str("chat_id", id).Msg("skipping unreadable chat")
}

// GetLastChat loads the most recently updated chat. It returns nil and no
// error when there are none.
func (m *Manager) GetLastChat() (*Chat, error) {
	chats, err := m.ListChats()
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, nil
	}
	return m.LoadChat(chats[0].ID)
}

// LoadChat loads chat id. Missing chats return ErrChatNotFound.
func (m *Manager) LoadChat(id string) (*Chat, error) {
	chat, err := Load(m.store, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrChatNotFound, id)
		}
		return nil, err
	}
	if chat.Legacy() {
		m.log.Info().Str("chat_id", id).Msg("upgraded legacy message format")
	}
	return chat, nil
}

// DeleteChat moves chat id into the trash directory.
func (m *Manager) DeleteChat(id string) error {
	dest, err := m.store.Delete(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrChatNotFound, id)
		}
		return err
	}
	m.log.Info().Str("chat_id", id).Str("trash", dest).Msg("chat deleted")
	return nil
}

// =============================================================================
// TITLES
// =============================================================================

// ApplyFirstExchangeTitle replaces a default title with the first user
// message. Reports whether the title changed.
func (m *Manager) ApplyFirstExchangeTitle(chat *Chat) bool {
	if !IsDefaultTitle(chat.Title()) {
		return false
	}
	first := util.CollapseWhitespace(chat.firstUserMessage())
	if first == "" {
		return false
	}
	chat.SetTitle(util.TruncateWidth(first, m.settings.TitleMaxLength))
	return true
}

// ShouldGenerateSmartTitle is true once the chat reaches the configured
// message count and has never had a title attempt.
func (m *Manager) ShouldGenerateSmartTitle(chat *Chat) bool {
	return !chat.Metadata.SmartTitleGenerated &&
		chat.NonSystemCount() >= m.settings.SmartTitleMinMessages
}

// GenerateSmartTitle asks modelAlias for a short title. The attempt is
// recorded whatever the outcome, so a failing title model is tried once.
// The returned error is informational; the chat has been saved.
func (m *Manager) GenerateSmartTitle(ctx context.Context, chat *Chat, client Chatter, modelAlias string) error {
	log := m.log.With().Str("chat_id", chat.ID()).Str("model", modelAlias).Logger()

	title, genErr := m.requestTitle(ctx, chat, client, modelAlias)
	if genErr != nil {
		log.Warn().Err(genErr).Msg("smart title generation failed")
	} else if title != "" && title != chat.Title() {
		log.Debug().Str("title", title).Msg("smart title generated")
		chat.SetTitle(title)
	}

	chat.Metadata.SmartTitleGenerated = true
	if err := chat.Save(); err != nil {
		return errors.Join(genErr, err)
	}
	return genErr
}

func (m *Manager) requestTitle(ctx context.Context, chat *Chat, client Chatter, modelAlias string) (string, error) {
	transcript := titleTranscript(chat.History(), m.settings.SmartTitleSample)
	if transcript == "" {
		return "", errors.New("nothing to title")
	}

	prompt := model.BuildPrompt(titleSystemPrompt, "Conversation:\n"+transcript+"\n\nTitle:")
	resp, err := client.Chat(ctx, prompt, modelAlias, llm.SilentOptions())
	if err != nil {
		return "", err
	}
	if resp.Interrupted {
		return "", context.Canceled
	}
	return CleanTitle(resp.Text(), m.settings.TitleMaxLength), nil
}

// titleTranscript formats the first sample turns for the title model.
func titleTranscript(turns []model.Turn, sample int) string {
	if sample > 0 && len(turns) > sample {
		turns = turns[:sample]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		label := "User"
		if t.Role == model.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// CleanTitle strips quoting and whitespace from a model-produced title and
// caps its width.
func CleanTitle(raw string, maxWidth int) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimPrefix(title, "Title:")
	title = strings.Trim(title, "\"'`“”‘’ ")
	title = util.CollapseWhitespace(title)
	if maxWidth > 0 {
		title = util.TruncateWidth(title, maxWidth)
	}
	return title
}
