package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"sita/core"
)

// ErrNoMicrophone is returned when nothing could be recorded from the input device.
var ErrNoMicrophone = errors.New("no microphone detected")

// Recorder captures one bounded window of 16-bit mono PCM.
type Recorder interface {
	Record(ctx context.Context, window time.Duration) (core.AudioChunk, error)
}

// CommandRecorder records through an external program writing raw PCM to stdout.
// "{rate}" and "{seconds}" in the command are replaced per window.
type CommandRecorder struct {
	command    []string
	sampleRate int
}

func NewCommandRecorder(command string, sampleRate int) *CommandRecorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	args := strings.Fields(command)
	if len(args) == 0 {
		args = defaultRecorderCommand()
	}
	return &CommandRecorder{command: args, sampleRate: sampleRate}
}

func (r *CommandRecorder) Record(ctx context.Context, window time.Duration) (core.AudioChunk, error) {
	if len(r.command) == 0 {
		return core.AudioChunk{}, ErrNoMicrophone
	}
	if _, err := exec.LookPath(r.command[0]); err != nil {
		return core.AudioChunk{}, fmt.Errorf("%w: %s not installed", ErrNoMicrophone, r.command[0])
	}

	seconds := int(window.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	args := make([]string, len(r.command))
	for i, a := range r.command {
		a = strings.ReplaceAll(a, "{rate}", strconv.Itoa(r.sampleRate))
		args[i] = strings.ReplaceAll(a, "{seconds}", strconv.Itoa(seconds))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && stdout.Len() == 0 {
		if ctx.Err() != nil {
			return core.AudioChunk{}, ctx.Err()
		}
		return core.AudioChunk{}, fmt.Errorf("%w: %s", ErrNoMicrophone, strings.TrimSpace(stderr.String()))
	}

	// some recorders can only write WAV
	data, err := StripWAVHeaderIfPresent(stdout.Bytes())
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("%w: %v", ErrNoMicrophone, err)
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	return core.AudioChunk{
		Data:       data,
		SampleRate: r.sampleRate,
		Channels:   1,
		Format:     core.PCM,
		Timestamp:  time.Now(),
	}, nil
}

func defaultRecorderCommand() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{"arecord", "-q", "-f", "S16_LE", "-r", "{rate}", "-c", "1", "-t", "raw", "-d", "{seconds}"}
	case "windows":
		return nil
	default:
		return []string{"rec", "-q", "-t", "raw", "-r", "{rate}", "-b", "16", "-c", "1", "-e", "signed-integer", "-", "trim", "0", "{seconds}"}
	}
}
