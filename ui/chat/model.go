// Package chat is the terminal surface: a transcript view, an input line and slash commands,
// all driven through the runner's command methods and event stream.
package chat

import (
	"sita/core"
	"sita/factories"
	"sita/transcript"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// Controller is the subset of the runner the surface drives.
type Controller interface {
	Submit(text string) error
	Cancel()
	StartVoice() error
	StopVoice()
	VoiceActive() bool
	ListSessions() ([]transcript.SessionRef, error)
	ResumeSession(name string) ([]core.Turn, error)
	StartNewSession() (transcript.SessionRef, error)
	Export(path string) error
	Import(path string) ([]core.Turn, error)
	Settings() factories.SettingsConfig
	UpdateSettings(fn func(*factories.SettingsConfig) error) (factories.SettingsConfig, error)
	Current() (string, string, []core.Turn)
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryStatus
)

type entry struct {
	kind entryKind
	text string
}

// Model is the Bubble Tea model for the chat view. Only Update mutates it; workers reach it
// through eventMsg.
type Model struct {
	ctrl   Controller
	events <-chan *core.EventPacket

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries   []entry
	partial   string // reply text streamed so far
	streaming bool

	sessionID string
	state     core.TurnState
	listening bool
	speaking  bool
	sessions  []transcript.SessionRef // last /sessions listing, for /resume <n>
	settings  factories.SettingsConfig

	width    int
	height   int
	quitting bool
}

type eventMsg struct{ packet *core.EventPacket }
type eventsClosedMsg struct{}

// New builds the surface. The transcript already bound to ctrl is shown immediately.
func New(ctrl Controller, events <-chan *core.EventPacket) Model {
	input := textinput.New()
	input.Placeholder = "Type a message or /help"
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = indicatorStyle

	m := Model{
		ctrl:     ctrl,
		events:   events,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
		settings: ctrl.Settings(),
	}
	id, _, turns := ctrl.Current()
	m.sessionID = id
	m.replaceTurns(turns)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events), m.spinner.Tick)
}

// waitForEvent blocks on the runner channel in a command goroutine, never in Update.
func waitForEvent(events <-chan *core.EventPacket) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		packet, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{packet: packet}
	}
}

func (m *Model) replaceTurns(turns []core.Turn) {
	m.entries = nil
	for _, t := range turns {
		m.entries = append(m.entries, turnEntry(t))
	}
	m.partial = ""
	m.streaming = false
}

func turnEntry(t core.Turn) entry {
	if t.Role == core.RoleAssistant {
		return entry{kind: entryAssistant, text: t.Text}
	}
	return entry{kind: entryUser, text: t.Text}
}

func (m *Model) addStatus(line string) {
	m.entries = append(m.entries, entry{kind: entryStatus, text: line})
}

func (m Model) busy() bool {
	return m.state != core.TurnIdle || m.listening || m.speaking
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(10, width-4)
	m.viewport.Width = width
	m.viewport.Height = max(3, height-headerHeight-footerHeight)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(20, width-4)),
	)
	if err == nil {
		m.renderer = r
	}
}

const (
	headerHeight = 2
	footerHeight = 4
)
