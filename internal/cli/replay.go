// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/session"
)

// replay prints the visible turns of chat. Plain output is the transcript;
// styled output renders assistant Markdown through glamour when ui.markdown
// is on.
func (a *App) replay(chat *session.Chat) {
	if !a.styled() {
		if transcript := chat.Transcript(); transcript != "" {
			fmt.Fprintln(a.out, transcript)
		}
		return
	}

	md := a.markdownRenderer()
	for _, t := range chat.History() {
		content := t.Content
		if t.Role == model.RoleAssistant && md != nil {
			if out, err := md.Render(content); err == nil {
				content = "\n" + strings.Trim(out, "\n")
			} else {
				a.log.Debug().Err(err).Msg("markdown render failed")
			}
		}
		fmt.Fprintf(a.out, "%s%s\n", roleLabel(t.Role, a.styled()), content)
	}
}

// markdownRenderer returns nil when Markdown rendering is off.
func (a *App) markdownRenderer() *glamour.TermRenderer {
	if !a.styled() || !a.settings.UI.Markdown {
		return nil
	}
	wrap := a.settings.UI.WordWrap
	if w := TerminalWidth(); wrap <= 0 || wrap > w {
		wrap = w
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		a.log.Debug().Err(err).Msg("glamour unavailable")
		return nil
	}
	return r
}
