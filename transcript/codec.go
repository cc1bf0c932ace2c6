package transcript

import (
	"strings"

	"sita/core"
)

// Lines look like "User: <text>" or "AI: <text>". Embedded newlines are escaped so that
// every turn stays on one physical line; a literal backslash is doubled.
var escaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

// EncodeLine renders a turn as one transcript line, newline included.
func EncodeLine(turn core.Turn) string {
	return turn.Role.Label() + ": " + escaper.Replace(turn.Text) + "\n"
}

// DecodeLine parses one line. ok is false for blank lines, unknown prefixes and turns without text.
func DecodeLine(line string) (core.Turn, bool) {
	line = strings.TrimRight(line, "\r\n")

	var role core.Role
	var rest string
	switch {
	case strings.HasPrefix(line, "User:"):
		role, rest = core.RoleUser, line[len("User:"):]
	case strings.HasPrefix(line, "AI:"):
		role, rest = core.RoleAssistant, line[len("AI:"):]
	default:
		return core.Turn{}, false
	}

	text := strings.TrimSpace(unescape(rest))
	if text == "" {
		return core.Turn{}, false
	}
	return core.Turn{Role: role, Text: text}, true
}

// Parse decodes a whole transcript, skipping lines it does not recognise.
func Parse(data string) []core.Turn {
	var turns []core.Turn
	for _, line := range strings.Split(data, "\n") {
		if turn, ok := DecodeLine(line); ok {
			turns = append(turns, turn)
		}
	}
	return turns
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			// unknown escape, keep both bytes as written
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
