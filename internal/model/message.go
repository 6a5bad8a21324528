// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns the transcript label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "Human"
	case RoleAssistant:
		return "AI"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// PART TYPE
// =============================================================================

// PartKind discriminates the content carried by a Part.
type PartKind string

const (
	PartSystemPrompt PartKind = "system-prompt"
	PartUserPrompt   PartKind = "user-prompt"
	PartText         PartKind = "text"
	PartThinking     PartKind = "thinking"
	PartToolCall     PartKind = "tool-call"
	PartToolReturn   PartKind = "tool-return"
)

// Part is one typed piece of a message.
type Part struct {
	Kind    PartKind `json:"part_kind"`
	Content string   `json:"content,omitempty"`

	// Tool parts only.
	ToolName   string `json:"tool_name,omitempty"`
	Args       string `json:"args,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// TextPart returns a text part.
func TextPart(s string) Part { return Part{Kind: PartText, Content: s} }

// ThinkingPart returns a thinking part.
func ThinkingPart(s string) Part { return Part{Kind: PartThinking, Content: s} }

// ToolCallPart returns a tool-call part.
func ToolCallPart(id, name, args string) Part {
	return Part{Kind: PartToolCall, ToolCallID: id, ToolName: name, Args: args}
}

// ToolReturnPart returns a tool-return part.
func ToolReturnPart(id, name, content string) Part {
	return Part{Kind: PartToolReturn, ToolCallID: id, ToolName: name, Content: content}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn in a conversation.
type Message struct {
	Role      Role
	Parts     []Part
	Timestamp time.Time
	ModelName string
}

// NewUserMessage builds a request message. A non-empty systemPrompt is placed
// in front of the user prompt.
func NewUserMessage(text, systemPrompt string) Message {
	parts := make([]Part, 0, 2)
	if systemPrompt != "" {
		parts = append(parts, Part{Kind: PartSystemPrompt, Content: systemPrompt})
	}
	parts = append(parts, Part{Kind: PartUserPrompt, Content: text})
	return Message{Role: RoleUser, Parts: parts, Timestamp: time.Now()}
}

// NewAssistantMessage builds a response message from parts.
func NewAssistantMessage(parts ...Part) Message {
	return Message{Role: RoleAssistant, Parts: parts, Timestamp: time.Now()}
}

// NewAssistantText builds a response message holding a single text part.
// An empty string yields a message with no parts.
func NewAssistantText(text string) Message {
	if text == "" {
		return NewAssistantMessage()
	}
	return NewAssistantMessage(TextPart(text))
}

// Text returns the visible content of the message: the user prompt for
// requests, the concatenated text parts for responses.
func (m Message) Text() string {
	switch m.Role {
	case RoleUser:
		return m.joined(PartUserPrompt)
	case RoleAssistant:
		return m.joined(PartText)
	case RoleSystem:
		return m.joined(PartSystemPrompt)
	}
	return ""
}

// SystemPrompt returns the system prompt bound to this message, if any.
func (m Message) SystemPrompt() string {
	return m.joined(PartSystemPrompt)
}

// Thinking returns the concatenated thinking parts.
func (m Message) Thinking() string {
	return m.joined(PartThinking)
}

// ToolParts returns tool-call and tool-return parts in order.
func (m Message) ToolParts() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Kind == PartToolCall || p.Kind == PartToolReturn {
			out = append(out, p)
		}
	}
	return out
}

// IsEmpty reports whether the message carries no content at all.
func (m Message) IsEmpty() bool {
	for _, p := range m.Parts {
		if p.Content != "" || p.ToolName != "" {
			return false
		}
	}
	return true
}

func (m Message) joined(kind PartKind) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Kind == kind {
			sb.WriteString(p.Content)
		}
	}
	return sb.String()
}

// =============================================================================
// JSON ENCODING
// =============================================================================

const (
	kindRequest  = "request"
	kindResponse = "response"
)

// wireMessage is the persisted shape of a Message.
type wireMessage struct {
	Kind      string    `json:"kind"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name,omitempty"`
}

// MarshalJSON encodes the message with its "kind" discriminator.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Kind:      kindRequest,
		Parts:     m.Parts,
		Timestamp: m.Timestamp,
		ModelName: m.ModelName,
	}
	if m.Role == RoleAssistant {
		w.Kind = kindResponse
	}
	if w.Parts == nil {
		w.Parts = []Part{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a message written by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Kind {
	case kindResponse:
		m.Role = RoleAssistant
	case kindRequest:
		m.Role = RoleSystem
		for _, p := range w.Parts {
			if p.Kind == PartUserPrompt {
				m.Role = RoleUser
				break
			}
		}
	default:
		return fmt.Errorf("unknown message kind %q", w.Kind)
	}

	m.Parts = w.Parts
	m.Timestamp = w.Timestamp
	m.ModelName = w.ModelName
	return nil
}
