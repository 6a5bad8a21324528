// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages.
//
// A Message is a single turn tagged by Role and made of typed Parts. Requests
// (user turns) carry an optional system-prompt part followed by the user
// prompt; responses (assistant turns) carry text, thinking and tool parts.
//
// The JSON encoding uses a "kind" discriminator ("request" or "response")
// and "part_kind" per part. Files written before parts existed stored a flat
// list of {role, content} objects; ConvertLegacy upgrades those.
package model
