package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"studyhall/internal/chat"
	"studyhall/internal/ui/markdown"
)

// refreshContent re-renders the transcript into the viewport when the
// display state changed. Keeps the scroll pinned to the bottom when it
// already was.
func (m Model) refreshContent() Model {
	if !m.ready || !m.contentDirty {
		return m
	}
	textWidth := m.vp.Width - 2
	if textWidth < 10 {
		textWidth = 10
	}
	if m.md == nil || m.md.Width() != textWidth {
		if r, err := markdown.New(textWidth); err == nil {
			m.md = r
		}
	}
	atBottom := m.vp.AtBottom()
	m.vp.SetContent(m.renderTranscript(textWidth))
	if atBottom {
		m.vp.GotoBottom()
	}
	m.contentDirty = false
	return m
}

func (m Model) renderTranscript(width int) string {
	if m.loadingChatID != "" {
		return m.spin.View() + " Loading conversation..."
	}
	if m.loadErrChatID != "" {
		return statusErrStyle.Render("Could not load this conversation: "+m.loadErrText) +
			"\n" + helpStyle.Render("press r to retry")
	}
	if m.welcome || m.chatID == "" {
		return welcomeStyle.Width(width).Render(
			"\n\nWelcome to studyhall.\n\nPick a conversation on the left, or press ctrl+n to start a new one.")
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg chat.Message, width int) string {
	var label string
	switch msg.Sender {
	case chat.SenderUser:
		label = userLabelStyle.Render("You")
	default:
		label = assistantLabelStyle.Render("Tutor")
	}
	if !msg.Timestamp.IsZero() {
		label += summaryMetaStyle.Render("  " + msg.Timestamp.Format("15:04"))
	}
	if msg.ID == m.followUpID {
		label += followUpStyle.Render("  [ctrl+f to continue]")
	}

	body := msg.Text
	if msg.Pending {
		return label + "\n" + pendingStyle.Render(wordwrap.String(body, width)) + " " + m.spin.View()
	}
	if msg.Sender == chat.SenderAssistant && m.md != nil {
		if rendered, err := m.md.Render(body); err == nil {
			return label + "\n" + strings.TrimRight(rendered, "\n")
		}
	}
	return label + "\n" + wordwrap.String(body, width)
}

// View renders the full frame: sidebar, chat pane, input, status line.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	sidebarW := m.width / 4
	if sidebarW < 24 {
		sidebarW = 24
	}

	sidebar := m.renderSidebar(sidebarW - 4)
	sbStyle := sidebarStyle
	if m.focus == focusSidebar {
		sbStyle = sidebarFocusedStyle
	}
	left := sbStyle.Width(sidebarW - 2).Height(m.height - 2).Render(sidebar)

	right := m.renderChatColumn()

	frame := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return frame
}

func (m Model) renderSidebar(width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Conversations"))
	b.WriteString("\n\n")

	if len(m.summaries) == 0 {
		b.WriteString(summaryMetaStyle.Render("No conversations yet."))
		return b.String()
	}

	for i, s := range m.summaries {
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		if s.IsPinned {
			title = pinIndicatorStyle.Render("★ ") + title
		}
		line := runewidth.Truncate(title, width, "…")
		if m.sendingChats[s.ID] {
			line = runewidth.Truncate(title, width-2, "…") + " " + m.spin.View()
		}
		meta := fmt.Sprintf("%d messages", s.MessageCount)
		if !s.LastMessageAt.IsZero() {
			meta = s.LastMessageAt.Format("Jan 2") + " · " + meta
		}

		if i == m.cursor && m.focus == focusSidebar {
			b.WriteString(summarySelectedStyle.Width(width).Render(line))
		} else if s.ID == m.chatID {
			b.WriteString(summaryActiveStyle.Width(width).Render(line))
		} else {
			b.WriteString(summaryStyle.Render(line))
		}
		b.WriteString("\n")
		b.WriteString(summaryMetaStyle.Render(runewidth.Truncate(meta, width, "…")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderChatColumn() string {
	var parts []string

	title := m.header.Title
	if title == "" && m.chatID != "" {
		title = "Conversation"
	}
	if m.header.IsPinned {
		title = pinIndicatorStyle.Render("★ ") + title
	}
	if m.sending {
		title += "  " + m.spin.View() + pendingStyle.Render(" thinking")
	}
	parts = append(parts, headerStyle.Render(title))

	if m.banner != nil {
		banner := fmt.Sprintf("📌 %s", m.banner.Text)
		parts = append(parts, bannerStyle.Width(m.vp.Width).Render(runewidth.Truncate(banner, m.vp.Width, "…")))
	}

	cpStyle := chatPaneStyle
	if m.focus == focusInput {
		cpStyle = chatPaneFocusedStyle
	}
	parts = append(parts, cpStyle.Render(m.vp.View()))
	parts = append(parts, m.input.View())

	if m.status != "" {
		parts = append(parts, statusErrStyle.Render(m.status))
	} else {
		parts = append(parts, helpStyle.Render("tab: switch focus · enter: send/open · ctrl+n: new · p: pin · d: delete · ctrl+c: quit"))
	}
	if m.lastLog != "" {
		parts = append(parts, helpStyle.Render(runewidth.Truncate(m.lastLog, m.vp.Width, "…")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
