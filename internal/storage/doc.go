// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chats on disk.
//
// Each chat is a directory named by its id holding two JSON records:
//
//	<chat_dir>/<id>/metadata.json
//	<chat_dir>/<id>/messages.json
//
// Both files are rewritten wholesale on every save. A crash between the two
// writes can leave them out of sync; nothing tries to repair that.
//
// # Usage
//
//	store, err := storage.NewStore(chatDir)
//	err = store.Save(meta, messages)
//	metas, err := store.List(nil)
//	messages, legacy, err := store.LoadMessages(metas[0].ID)
//
// Deleted chats are moved into <chat_dir>/.trash rather than erased.
package storage
