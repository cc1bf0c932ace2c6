package transcript

import (
	"testing"

	"sita/core"

	"github.com/stretchr/testify/assert"
)

func TestDecodeLineLenient(t *testing.T) {
	cases := []struct {
		line string
		want core.Turn
		ok   bool
	}{
		{"User: hi", core.Turn{Role: core.RoleUser, Text: "hi"}, true},
		{"AI: hello\r\n", core.Turn{Role: core.RoleAssistant, Text: "hello"}, true},
		{"User:no space", core.Turn{Role: core.RoleUser, Text: "no space"}, true},
		{"AI:   ", core.Turn{}, false},
		{"", core.Turn{}, false},
		{"System: ignored", core.Turn{}, false},
		{"user: lowercase is not a role", core.Turn{}, false},
	}
	for _, tc := range cases {
		got, ok := DecodeLine(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}
}

func TestEncodeEscapesLineBreaks(t *testing.T) {
	line := EncodeLine(core.Turn{Role: core.RoleAssistant, Text: "a\nb\\c\r"})
	assert.Equal(t, "AI: a\\nb\\\\c\\r\n", line)

	turn, ok := DecodeLine(line)
	assert.True(t, ok)
	assert.Equal(t, "a\nb\\c", turn.Text)
}

func TestParseSkipsGarbage(t *testing.T) {
	turns := Parse("User: a\nrandom noise\n\nAI: b\nUser: c")
	assert.Equal(t, []core.Turn{
		{Role: core.RoleUser, Text: "a"},
		{Role: core.RoleAssistant, Text: "b"},
		{Role: core.RoleUser, Text: "c"},
	}, turns)
}
