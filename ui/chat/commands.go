package chat

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sita/core"
	"sita/factories"

	tea "github.com/charmbracelet/bubbletea"
)

var errUsage = errors.New("usage")

// command is a parsed slash command line.
type command struct {
	name string
	args []string
	rest string // everything after the name, untrimmed of inner spaces
}

// parseCommand splits "/set system_prompt You are terse." into name and arguments.
// ok is false when line is not a command.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return command{}, false
	}
	body := line[1:]
	name, rest, _ := strings.Cut(body, " ")
	return command{
		name: strings.ToLower(name),
		args: strings.Fields(rest),
		rest: strings.TrimSpace(rest),
	}, true
}

var helpLines = []string{
	"/cancel               stop the reply in progress",
	"/voice                start or stop listening",
	"/sessions             list saved sessions",
	"/resume <n|name>      continue a saved session",
	"/new                  start a new session",
	"/export <path>        copy this transcript",
	"/import <path>        load a transcript into this session",
	"/config               show settings",
	"/set <key> <value>    change a setting",
	"/quit                 exit",
}

// runCommand executes cmd against the controller, adding status lines to the view.
func (m *Model) runCommand(cmd command) tea.Cmd {
	switch cmd.name {
	case "help", "?":
		for _, l := range helpLines {
			m.addStatus(l)
		}
	case "cancel", "stop":
		m.ctrl.Cancel()
	case "voice", "mic":
		m.toggleVoice()
	case "sessions", "list":
		m.listSessions()
	case "resume", "load":
		if len(cmd.args) != 1 {
			m.addStatus("[Error] usage: /resume <n|name>")
			break
		}
		name, err := m.resolveSession(cmd.args[0])
		if err == nil {
			_, err = m.ctrl.ResumeSession(name)
		}
		if err != nil {
			m.addStatus(core.StatusLine(err))
		}
	case "new":
		if _, err := m.ctrl.StartNewSession(); err != nil {
			m.addStatus(core.StatusLine(err))
		}
	case "export":
		if cmd.rest == "" {
			m.addStatus("[Error] usage: /export <path>")
			break
		}
		if err := m.ctrl.Export(cmd.rest); err != nil {
			m.addStatus(core.StatusLine(err))
		}
	case "import":
		if cmd.rest == "" {
			m.addStatus("[Error] usage: /import <path>")
			break
		}
		if _, err := m.ctrl.Import(cmd.rest); err != nil {
			m.addStatus(core.StatusLine(err))
		}
	case "config", "settings":
		for _, kv := range m.ctrl.Settings().Fields() {
			m.addStatus(fmt.Sprintf("%s = %s", kv[0], kv[1]))
		}
	case "set":
		m.setSetting(cmd)
	case "quit", "exit":
		m.quitting = true
		return tea.Quit
	default:
		m.addStatus(fmt.Sprintf("[Error] unknown command /%s, try /help", cmd.name))
	}
	return nil
}

func (m *Model) toggleVoice() {
	if m.ctrl.VoiceActive() {
		m.ctrl.StopVoice()
		return
	}
	if err := m.ctrl.StartVoice(); err != nil {
		m.addStatus(core.StatusLine(err))
	}
}

func (m *Model) listSessions() {
	refs, err := m.ctrl.ListSessions()
	if err != nil {
		m.addStatus(core.StatusLine(err))
		return
	}
	m.sessions = refs
	if len(refs) == 0 {
		m.addStatus("[System] No saved sessions.")
		return
	}
	for i, ref := range refs {
		marker := ""
		if ref.SessionID == m.sessionID {
			marker = " (current)"
		}
		m.addStatus(fmt.Sprintf("%d. %s%s", i+1, ref.Name, marker))
	}
}

// resolveSession maps "/resume 2" onto the second entry of the last listing.
// Anything else is passed through as a file name.
func (m *Model) resolveSession(arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	if len(m.sessions) == 0 {
		refs, err := m.ctrl.ListSessions()
		if err != nil {
			return "", err
		}
		m.sessions = refs
	}
	if n < 1 || n > len(m.sessions) {
		return "", fmt.Errorf("no session numbered %d, run /sessions", n)
	}
	return m.sessions[n-1].Name, nil
}

func (m *Model) setSetting(cmd command) {
	if len(cmd.args) < 2 {
		keys := settingKeys(m.ctrl.Settings())
		m.addStatus("[Error] usage: /set <key> <value>, keys: " + strings.Join(keys, ", "))
		return
	}
	key := cmd.args[0]
	value := strings.TrimSpace(strings.TrimPrefix(cmd.rest, key))
	updated, err := m.ctrl.UpdateSettings(func(c *factories.SettingsConfig) error {
		return c.Set(key, value)
	})
	if err != nil {
		m.addStatus(core.StatusLine(err))
		return
	}
	m.settings = updated
	m.addStatus(fmt.Sprintf("[System] %s updated.", key))
}

func settingKeys(c factories.SettingsConfig) []string {
	fields := c.Fields()
	keys := make([]string, 0, len(fields))
	for _, kv := range fields {
		keys = append(keys, kv[0])
	}
	sort.Strings(keys)
	return keys
}
