// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Shared styles for the chat transcript and lists.
var (
	UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	AssistantLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)

	SystemLabel = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	ThinkingHeader = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).Bold(true)

	ToolCall = lipgloss.NewStyle().Foreground(Amber)

	ToolResult = lipgloss.NewStyle().Foreground(TextSecondary)

	Separator = lipgloss.NewStyle().Foreground(Overlay)

	Title = lipgloss.NewStyle().Foreground(Purple).Bold(true)

	Muted = lipgloss.NewStyle().Foreground(TextMuted)

	Command = lipgloss.NewStyle().Foreground(Cyan)

	Selected = lipgloss.NewStyle().Foreground(TextPrimary).Background(SelectionBg).Bold(true)
)

// Rule returns a horizontal separator of the given width.
func Rule(width int) string {
	if width <= 0 {
		width = 40
	}
	line := make([]rune, width)
	for i := range line {
		line[i] = '─'
	}
	return Separator.Render(string(line))
}
