package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"sita/core"
)

// Player plays one clip and returns when playback finishes or ctx is done.
type Player interface {
	Play(ctx context.Context, clip core.AudioChunk) error
}

// ErrNoPlayer is returned when no playback program could be found.
var ErrNoPlayer = errors.New("audio: no playback program found")

// CommandPlayer plays clips through an external program such as ffplay or afplay.
// The clip is written to a temp file whose path replaces "{file}" in the command.
// Cancelling ctx kills the program, which stops the sound immediately.
type CommandPlayer struct {
	command []string
	tempDir string
	logger  *core.Logger
}

// NewCommandPlayer parses command (whitespace separated, "{file}" placeholder).
// An empty command picks a platform default at play time.
func NewCommandPlayer(command string, logger *core.Logger) *CommandPlayer {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CommandPlayer{
		command: strings.Fields(command),
		tempDir: os.TempDir(),
		logger:  logger.With(map[string]interface{}{"component": "player"}),
	}
}

func (p *CommandPlayer) Play(ctx context.Context, clip core.AudioChunk) error {
	data, format, err := Playable(clip)
	if err != nil {
		return err
	}

	args := p.command
	if len(args) == 0 {
		args = defaultPlayerCommand(format)
	}
	if len(args) == 0 {
		return ErrNoPlayer
	}

	f, err := os.CreateTemp(p.tempDir, "sita-*"+format.Extension())
	if err != nil {
		return fmt.Errorf("audio: temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("audio: temp file: %w", err)
	}
	f.Close()

	expanded := make([]string, len(args))
	for i, a := range args {
		expanded[i] = strings.ReplaceAll(a, "{file}", f.Name())
	}

	cmd := exec.CommandContext(ctx, expanded[0], expanded[1:]...)
	p.logger.Debug("starting playback", "program", expanded[0], "bytes", len(data))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio: %s: %w", expanded[0], err)
	}
	return nil
}

func defaultPlayerCommand(format core.AudioEncodingFormat) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"afplay", "{file}"}
	case "windows":
		return []string{"powershell", "-NoProfile", "-Command",
			"Add-Type -AssemblyName presentationCore; $p = New-Object System.Windows.Media.MediaPlayer; " +
				"$p.Open('{file}'); $p.Play(); Start-Sleep -Milliseconds 500; " +
				"while (-not $p.NaturalDuration.HasTimeSpan) { Start-Sleep -Milliseconds 50 }; " +
				"Start-Sleep -Milliseconds ([int]$p.NaturalDuration.TimeSpan.TotalMilliseconds)"}
	}

	candidates := [][]string{{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "{file}"}}
	if format == core.MP3 {
		candidates = append(candidates, []string{"mpg123", "-q", "{file}"})
	} else {
		candidates = append(candidates, []string{"aplay", "-q", "{file}"}, []string{"paplay", "{file}"})
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c[0]); err == nil {
			return c
		}
	}
	return nil
}
