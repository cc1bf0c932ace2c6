package context

import (
	"fmt"
	"testing"

	"sita/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource []core.Turn

func (f fixedSource) ContextWindow(n int) []core.Turn {
	if n <= 0 {
		return nil
	}
	if len(f) <= n {
		return append([]core.Turn(nil), f...)
	}
	return append([]core.Turn(nil), f[len(f)-n:]...)
}

func TestBuildPromptEmptyTranscript(t *testing.T) {
	prompt := BuildPrompt("S", fixedSource(nil), "hi")

	assert.Equal(t, []core.LLMMessage{
		{Role: core.LLMMessageRoleSystem, Message: "S"},
		{Role: core.LLMMessageRoleUser, Message: "hi"},
	}, prompt)
}

func TestBuildPromptUsesLastSixTurns(t *testing.T) {
	var turns fixedSource
	for i := 1; i <= 10; i++ {
		role := core.RoleUser
		if i%2 == 0 {
			role = core.RoleAssistant
		}
		turns = append(turns, core.Turn{Role: role, Text: fmt.Sprintf("t%d", i)})
	}

	prompt := BuildPrompt(DEFAULT_SYSTEM_PROMPT, turns, "next")
	require.Len(t, prompt, 8)
	assert.Equal(t, core.LLMMessageRoleSystem, prompt[0].Role)
	assert.Equal(t, "t5", prompt[1].Message)
	assert.Equal(t, core.LLMMessageRoleUser, prompt[1].Role)
	assert.Equal(t, "t10", prompt[6].Message)
	assert.Equal(t, core.LLMMessageRoleAssistant, prompt[6].Role)
	assert.Equal(t, core.LLMMessage{Role: core.LLMMessageRoleUser, Message: "next"}, prompt[7])
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	turns := fixedSource{{Role: core.RoleUser, Text: "a"}, {Role: core.RoleAssistant, Text: "b"}}
	assert.Equal(t, BuildPrompt("S", turns, "c"), BuildPrompt("S", turns, "c"))
}

func TestAssemblerDefaults(t *testing.T) {
	a := NewAssembler(ContextConfig{})
	prompt := a.Build(fixedSource{{Role: core.RoleUser, Text: "x"}}, "y")
	assert.Equal(t, DEFAULT_SYSTEM_PROMPT, prompt[0].Message)
	assert.Len(t, prompt, 3)
}
