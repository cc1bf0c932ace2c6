package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"sita/core"
)

var ErrNoEngine = errors.New("local tts: no speech engine found")

// LocalTTSConfig configures the offline fallback voice.
type LocalTTSConfig struct {
	Command string `json:"command"` // overrides engine detection; "{text}", "{rate}" and "{voice}" are substituted
	Voice   string `json:"voice"`
	Rate    int    `json:"rate"` // words per minute
}

// CommandTTS speaks through an engine installed on the machine (espeak-ng, espeak, say or
// Windows SAPI). Speak blocks while the engine talks; cancelling ctx silences it.
type CommandTTS struct {
	config LocalTTSConfig
	logger *core.Logger
}

func NewCommandTTS(config LocalTTSConfig, logger *core.Logger) *CommandTTS {
	if config.Rate <= 0 {
		config.Rate = 165
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CommandTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"component": "local_tts"}),
	}
}

func (c *CommandTTS) Init(ctx context.Context) error {
	if len(c.command("probe")) == 0 {
		return ErrNoEngine
	}
	return nil
}

func (c *CommandTTS) Cleanup() error { return nil }
func (c *CommandTTS) Reset() error   { return nil }

func (c *CommandTTS) Speak(ctx context.Context, text string) error {
	args := c.command(text)
	if len(args) == 0 {
		return ErrNoEngine
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	c.logger.Debug("speaking locally", "engine", args[0], "chars", len(text))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("local tts: %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *CommandTTS) command(text string) []string {
	if c.config.Command != "" {
		fields := strings.Fields(c.config.Command)
		for i, f := range fields {
			f = strings.ReplaceAll(f, "{rate}", strconv.Itoa(c.config.Rate))
			f = strings.ReplaceAll(f, "{voice}", c.config.Voice)
			fields[i] = strings.ReplaceAll(f, "{text}", text)
		}
		return fields
	}
	return detectEngine(text, c.config.Voice, c.config.Rate)
}

// detectEngine prefers a female voice where the engine lets us pick one.
func detectEngine(text, voice string, rate int) []string {
	switch runtime.GOOS {
	case "darwin":
		args := []string{"say", "-r", strconv.Itoa(rate)}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		return append(args, "--", text)
	case "windows":
		// SAPI rate is -10..10 with 0 around 180 wpm
		sapiRate := (rate - 180) / 20
		script := "Add-Type -AssemblyName System.Speech; " +
			"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; " +
			"try { $s.SelectVoiceByHints([System.Speech.Synthesis.VoiceGender]::Female) } catch {}; " +
			"$s.Rate = " + strconv.Itoa(sapiRate) + "; " +
			"$s.Speak('" + strings.ReplaceAll(text, "'", "''") + "')"
		return []string{"powershell", "-NoProfile", "-Command", script}
	}

	if voice == "" {
		voice = "en+f3"
	}
	for _, engine := range []string{"espeak-ng", "espeak"} {
		if _, err := exec.LookPath(engine); err == nil {
			return []string{engine, "-s", strconv.Itoa(rate), "-v", voice, "--", text}
		}
	}
	if _, err := exec.LookPath("spd-say"); err == nil {
		return []string{"spd-say", "-w", "-t", "female1", "--", text}
	}
	return nil
}
