// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns chat sessions: the in-memory message log, its
// metadata, and the lifecycle around them.
//
// # Key Types
//
//   - Chat: one session. Appends turns, saves and reloads itself.
//   - Manager: creates, lists, loads and deletes chats, and titles them.
//
// # Usage
//
//	mgr, err := session.NewManager(chatDir, session.WithLogger(log))
//	chat := mgr.CreateNewChat("sonnet", systemPrompt)
//	chat.AppendUserMessage("Hello")
//	chat.AppendAssistantText("Hi!", false)
//	err = chat.Save()
//
// A chat is not written until it has at least one non-system message, so
// sessions that are opened and abandoned leave nothing behind.
package session
