package chat

import (
	"fmt"

	"sita/core"
	llmevents "sita/events/llm"
	sessionevents "sita/events/session"
	sttevents "sita/events/stt"
	ttsevents "sita/events/tts"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEsc:
			m.ctrl.Cancel()
			return m, nil
		case tea.KeyCtrlR:
			m.toggleVoice()
			m.refresh()
			return m, nil
		case tea.KeyEnter:
			cmd := m.submit()
			m.refresh()
			return m, cmd
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case eventMsg:
		m.apply(msg.packet)
		m.settings = m.ctrl.Settings()
		m.refresh()
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles the input line: slash commands run here, anything else goes to the model.
func (m *Model) submit() tea.Cmd {
	line := m.input.Value()
	m.input.Reset()

	if cmd, ok := parseCommand(line); ok {
		return m.runCommand(cmd)
	}
	if err := m.ctrl.Submit(line); err != nil {
		m.addStatus(core.StatusLine(err))
	}
	return nil
}

// apply folds one runner event into the view.
func (m *Model) apply(packet *core.EventPacket) {
	if packet == nil {
		return
	}
	switch e := packet.Event.(type) {
	case *sessionevents.SessionStartedEvent:
		m.sessionID = e.SessionID
		m.replaceTurns(nil)
		m.addStatus(fmt.Sprintf("[System] New session %s", e.SessionID))
	case *sessionevents.SessionResumedEvent:
		m.sessionID = e.SessionID
		m.replaceTurns(e.Turns)
		m.addStatus(fmt.Sprintf("[System] Loaded %d turns from %s", len(e.Turns), e.SessionID))
	case *sessionevents.TurnAppendedEvent:
		if e.Turn.Role == core.RoleAssistant {
			m.partial = ""
			m.streaming = false
		}
		m.entries = append(m.entries, turnEntry(e.Turn))
	case *sessionevents.TurnStateChangedEvent:
		m.state = parseTurnState(e.State)
	case *sessionevents.ExportedEvent:
		m.addStatus(fmt.Sprintf("[System] Exported to %s", e.Path))

	case *llmevents.LLMResponseStartedEvent:
		m.partial = ""
		m.streaming = true
	case *llmevents.LLMResponseChunkEvent:
		m.partial += e.Chunk
	case *llmevents.LLMResponseCancelledEvent, *llmevents.LLMResponseFailedEvent:
		m.partial = ""
		m.streaming = false

	case *sttevents.STTListeningStartedEvent:
		m.listening = true
	case *sttevents.STTListeningStoppedEvent:
		m.listening = false
	case *sttevents.STTFinalOutputEvent:
		m.addStatus(fmt.Sprintf("[Voice] Heard: %s", e.Text))

	case *ttsevents.TTSSpeakingStartedEvent:
		m.speaking = true
	case *ttsevents.TTSSpeakingEndedEvent:
		m.speaking = false
	case *ttsevents.TTSFallbackEvent:
		m.addStatus(fmt.Sprintf("[TTS] falling back to local voice: %s", e.Reason))

	case *core.StatusEvent:
		m.addStatus(e.Line)
	case *core.WarningEvent:
		m.addStatus(fmt.Sprintf("[Warning] %s", e.Error))
	}
}

func parseTurnState(s string) core.TurnState {
	for st := core.TurnIdle; st <= core.TurnFailed; st++ {
		if st.String() == s {
			return st
		}
	}
	return core.TurnIdle
}
