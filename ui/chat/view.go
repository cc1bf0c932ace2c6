package chat

import (
	"strings"

	"sita/core"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.indicator())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • esc cancel • ctrl+r voice • /help commands • ctrl+c quit"))
	return b.String()
}

func (m Model) header() string {
	parts := []string{titleStyle.Render("SITA")}
	if m.settings.ModelName != "" {
		parts = append(parts, badgeStyle.Render(m.settings.ModelName))
	}
	if m.settings.SafeMode {
		parts = append(parts, safeBadgeStyle.Render("SAFE"))
	}
	if m.sessionID != "" {
		parts = append(parts, helpStyle.Render(m.sessionID))
	}
	return strings.Join(parts, " ")
}

// indicator is the activity line under the transcript. It stays blank when the floating
// indicator is turned off.
func (m Model) indicator() string {
	if !m.settings.FloatingIndicator || !m.busy() {
		return ""
	}
	label := ""
	switch {
	case m.listening:
		label = "Listening..."
	case m.state == core.TurnAwaitingReply:
		label = "Thinking..."
	case m.state == core.TurnStreaming:
		label = "Replying..."
	case m.speaking:
		label = "Speaking..."
	default:
		return ""
	}
	return m.spinner.View() + " " + indicatorStyle.Render(label)
}

// refresh rerenders the transcript into the viewport and keeps it scrolled to the bottom.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(m.renderEntry(e))
		b.WriteString("\n")
	}
	if m.streaming && m.partial != "" {
		b.WriteString(assistantLabelStyle.Render(core.RoleAssistant.Label() + ":"))
		b.WriteString(" ")
		b.WriteString(m.partial)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEntry(e entry) string {
	switch e.kind {
	case entryUser:
		return userLabelStyle.Render(core.RoleUser.Label()+":") + " " + e.text
	case entryAssistant:
		return assistantLabelStyle.Render(core.RoleAssistant.Label()+":") + "\n" + m.markdown(e.text)
	default:
		if strings.HasPrefix(e.text, "[Error]") || strings.HasPrefix(e.text, "[Warning]") {
			return errorStyle.Render(e.text)
		}
		return statusStyle.Render(e.text)
	}
}

// markdown renders assistant text with glamour, falling back to the raw text.
func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
