// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package picker is the interactive list used to choose a saved chat.
package picker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/llmcli/internal/storage"
	"github.com/jeranaias/llmcli/internal/ui/styles"
	"github.com/jeranaias/llmcli/internal/util"
)

// PageSize is the number of chats shown per page.
const PageSize = 10

// DeleteFunc removes a chat. The picker drops the row only when it succeeds.
type DeleteFunc func(id string) error

// Model is the bubbletea model for the chat picker.
type Model struct {
	chats    []storage.Metadata
	cursor   int // absolute index into chats
	pendingD bool

	keys     KeyMap
	help     help.Model
	onDelete DeleteFunc
	now      func() time.Time

	width    int
	status   string
	selected string
	done     bool
}

// New creates a picker over chats, which are shown in the given order.
func New(chats []storage.Metadata, onDelete DeleteFunc) Model {
	return Model{
		chats:    chats,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		onDelete: onDelete,
		now:      time.Now,
		width:    80,
	}
}

// Selected returns the chosen chat id, or "" when the picker was cancelled.
func (m Model) Selected() string { return m.selected }

// Page returns the zero-based current page.
func (m Model) Page() int { return m.cursor / PageSize }

// PageCount returns the number of pages, at least one.
func (m Model) PageCount() int {
	if len(m.chats) == 0 {
		return 1
	}
	return (len(m.chats) + PageSize - 1) / PageSize
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// "dd" deletes; any other key clears a pending "d".
	if key.Matches(msg, m.keys.Delete) {
		if !m.pendingD {
			m.pendingD = true
			return m, nil
		}
		m.pendingD = false
		m.deleteCurrent()
		return m, nil
	}
	m.pendingD = false
	m.status = ""

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.done = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Select):
		if len(m.chats) > 0 {
			m.selected = m.chats[m.cursor].ID
			m.done = true
			return m, tea.Quit
		}

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.chats)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.NextPage):
		if m.Page() < m.PageCount()-1 {
			m.cursor = min((m.Page()+1)*PageSize, len(m.chats)-1)
		}

	case key.Matches(msg, m.keys.PrevPage):
		if m.Page() > 0 {
			m.cursor = (m.Page() - 1) * PageSize
		}
	}
	return m, nil
}

func (m *Model) deleteCurrent() {
	if len(m.chats) == 0 || m.onDelete == nil {
		return
	}
	target := m.chats[m.cursor]
	if err := m.onDelete(target.ID); err != nil {
		m.status = styles.RenderError(fmt.Sprintf("delete failed: %v", err))
		return
	}
	m.chats = append(m.chats[:m.cursor:m.cursor], m.chats[m.cursor+1:]...)
	if m.cursor >= len(m.chats) && m.cursor > 0 {
		m.cursor--
	}
	m.status = styles.RenderSuccess("deleted " + util.TruncateWidth(target.Title, 40))
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Saved chats"))
	if len(m.chats) > 0 {
		sb.WriteString(styles.Muted.Render(fmt.Sprintf("  page %d/%d", m.Page()+1, m.PageCount())))
	}
	sb.WriteString("\n\n")

	if len(m.chats) == 0 {
		sb.WriteString(styles.Muted.Render("No saved chats."))
		sb.WriteString("\n")
	}

	start := m.Page() * PageSize
	end := min(start+PageSize, len(m.chats))
	titleWidth := max(m.width-32, 20)
	now := m.now()

	for i := start; i < end; i++ {
		c := m.chats[i]
		row := fmt.Sprintf("%s  %s  %s",
			util.PadRight(util.CollapseWhitespace(c.Title), titleWidth),
			util.PadRight(humanize.RelTime(c.UpdatedAt.Time, now, "ago", "from now"), 16),
			fmt.Sprintf("%3d msgs", c.MessageCount),
		)
		if i == m.cursor {
			sb.WriteString(styles.Selected.Render("> " + row))
		} else {
			sb.WriteString("  " + row)
		}
		sb.WriteString("\n")
	}

	if m.status != "" {
		sb.WriteString("\n" + m.status + "\n")
	}
	sb.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return sb.String()
}

// Run shows the picker and blocks until the user selects or cancels. It
// returns the selected chat id, or "" when cancelled.
func Run(ctx context.Context, chats []storage.Metadata, onDelete DeleteFunc, in io.Reader, out io.Writer) (string, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	final, err := tea.NewProgram(New(chats, onDelete), opts...).Run()
	if err != nil {
		return "", fmt.Errorf("chat picker: %w", err)
	}
	return final.(Model).Selected(), nil
}
