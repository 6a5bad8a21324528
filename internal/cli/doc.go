// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the llmcli command line.
//
// The root command runs the interactive chat. Subcommands manage saved chats:
//
//	llmcli [prompt-name]        start a chat with prompts/prompt_<name>.txt
//	llmcli -c                   continue the most recent chat
//	llmcli -r                   pick a saved chat to resume
//	llmcli -r=<id>              resume a specific chat
//	llmcli list [query]         list or search saved chats
//	llmcli show <id>            print a saved chat
//	llmcli export <id>          write a chat as Markdown or JSON
//	llmcli delete <id>          move a chat to the trash
//	llmcli models               list model aliases and capabilities
//	llmcli paths                print config and data locations
//
// Inside the chat, a line ending in a backslash continues on the next line
// and slash commands (/help) adjust the session.
package cli
