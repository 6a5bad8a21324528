// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/storage"
	"github.com/jeranaias/llmcli/internal/util"
)

// ErrChatNotFound is returned when no chat exists for an id.
var ErrChatNotFound = storage.ErrNotFound

const (
	idTimeLayout    = "20060102_150405"
	titleTimeLayout = "2006-01-02 15:04"
	defaultPrefix   = "Chat "

	// PreviewWidth bounds the stored first-message preview.
	PreviewWidth = 100
)

// NewChatID returns a time-sortable id with a random suffix, unique even
// for chats created within the same second.
func NewChatID(now time.Time) string {
	return now.Format(idTimeLayout) + "_" + uuid.New().String()[:8]
}

// DefaultTitle labels a chat by its creation time.
func DefaultTitle(now time.Time) string {
	return defaultPrefix + now.Format(titleTimeLayout)
}

// IsDefaultTitle reports whether title still has the DefaultTitle form.
func IsDefaultTitle(title string) bool {
	rest, ok := strings.CutPrefix(title, defaultPrefix)
	if !ok {
		return false
	}
	_, err := time.Parse(titleTimeLayout, rest)
	return err == nil
}

// =============================================================================
// CHAT
// =============================================================================

// Chat is one session: metadata plus an ordered message log. It is not
// safe for concurrent use; the REPL mutates it between turns only.
type Chat struct {
	Metadata storage.Metadata

	messages      []model.Message
	pendingSystem string
	legacy        bool
	store         *storage.Store
}

func newChat(store *storage.Store, meta storage.Metadata, messages []model.Message) *Chat {
	return &Chat{Metadata: meta, messages: messages, store: store}
}

// ID returns the chat id.
func (c *Chat) ID() string { return c.Metadata.ID }

// Title returns the current title.
func (c *Chat) Title() string { return c.Metadata.Title }

// SetTitle replaces the title. Blank titles are ignored.
func (c *Chat) SetTitle(title string) {
	if title = strings.TrimSpace(title); title != "" {
		c.Metadata.Title = title
	}
}

// Model returns the model alias recorded for the chat.
func (c *Chat) Model() string { return c.Metadata.Model }

// SetModel records a new model alias.
func (c *Chat) SetModel(alias string) { c.Metadata.Model = alias }

// Legacy reports whether the chat was loaded from the flat legacy format.
// It is rewritten in the structured format on the next save.
func (c *Chat) Legacy() bool { return c.legacy }

// Messages returns a copy of the message log.
func (c *Chat) Messages() []model.Message {
	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// SetSystemPrompt holds prompt until the next user message. Only one
// prompt can be pending; a second call replaces the first.
func (c *Chat) SetSystemPrompt(prompt string) {
	c.pendingSystem = prompt
}

// PendingSystemPrompt returns the prompt not yet bound to a user message.
func (c *Chat) PendingSystemPrompt() string { return c.pendingSystem }

// SystemPrompt returns the pending prompt, or else the latest bound one.
func (c *Chat) SystemPrompt() string {
	if c.pendingSystem != "" {
		return c.pendingSystem
	}
	return model.LatestSystemPrompt(c.messages)
}

// AppendUserMessage binds any pending system prompt and appends the
// message. Callers reject blank input before getting here.
func (c *Chat) AppendUserMessage(text string) {
	c.messages = append(c.messages, model.NewUserMessage(text, c.pendingSystem))
	c.pendingSystem = ""
}

// AppendAssistantResponse appends a structured response. An empty one is
// dropped unless allowEmpty is set. Reports whether it was appended.
func (c *Chat) AppendAssistantResponse(msg model.Message, allowEmpty bool) bool {
	if msg.IsEmpty() && !allowEmpty {
		return false
	}
	msg.Role = model.RoleAssistant
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.messages = append(c.messages, msg)
	return true
}

// AppendAssistantText appends a plain-text response.
func (c *Chat) AppendAssistantText(text string, allowEmpty bool) bool {
	return c.AppendAssistantResponse(model.NewAssistantText(text), allowEmpty)
}

// NonSystemCount counts user and assistant messages.
func (c *Chat) NonSystemCount() int {
	n := 0
	for _, m := range c.messages {
		if m.Role != model.RoleSystem {
			n++
		}
	}
	return n
}

// ShouldBeSaved is true once the chat holds a non-system message.
func (c *Chat) ShouldBeSaved() bool {
	return c.NonSystemCount() > 0
}

// Save writes the chat. It does nothing until ShouldBeSaved is true.
func (c *Chat) Save() error {
	if !c.ShouldBeSaved() {
		return nil
	}
	if c.store == nil {
		return fmt.Errorf("chat %s has no store", c.ID())
	}

	c.Metadata.UpdatedAt = storage.Now()
	c.Metadata.MessageCount = c.NonSystemCount()
	if preview := c.firstUserMessage(); preview != "" {
		c.Metadata.Preview = util.TruncateWidth(util.CollapseWhitespace(preview), PreviewWidth)
	}

	if err := c.store.Save(&c.Metadata, c.messages); err != nil {
		return fmt.Errorf("failed to save chat %s: %w", c.ID(), err)
	}
	c.legacy = false
	return nil
}

// Load reads chat id from store, upgrading the legacy format if needed.
func Load(store *storage.Store, id string) (*Chat, error) {
	meta, err := store.LoadMetadata(id)
	if err != nil {
		return nil, err
	}
	messages, legacy, err := store.LoadMessages(id)
	if err != nil {
		return nil, err
	}

	chat := newChat(store, *meta, messages)
	chat.legacy = legacy
	return chat, nil
}

// History returns the visible (role, content) turns.
func (c *Chat) History() []model.Turn {
	return model.Flatten(c.messages)
}

// Transcript renders the visible turns with the REPL's speaker labels.
func (c *Chat) Transcript() string {
	var sb strings.Builder
	for i, t := range c.History() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(t.Role.DisplayName())
		sb.WriteString(": ")
		sb.WriteString(t.Content)
	}
	return sb.String()
}

func (c *Chat) firstUserMessage() string {
	for _, m := range c.messages {
		if m.Role == model.RoleUser {
			if text := m.Text(); strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return ""
}
