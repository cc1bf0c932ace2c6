package local

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandSubstitution(t *testing.T) {
	c := NewCommandTTS(LocalTTSConfig{Command: "speak -r {rate} -v {voice} {text}", Voice: "f1"}, nil)
	assert.Equal(t, []string{"speak", "-r", "165", "-v", "f1", "hello"}, c.command("hello"))
}

func TestSpeakReportsMissingEngine(t *testing.T) {
	c := NewCommandTTS(LocalTTSConfig{Command: "no-such-speech-engine {text}"}, nil)
	assert.Error(t, c.Speak(context.Background(), "hi"))
}

func TestSpeakIsCancellable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sleep(1)")
	}
	c := NewCommandTTS(LocalTTSConfig{Command: "sleep 5"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Speak(ctx, "ignored")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}
