package stt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sita/core"
	"sita/events/stt"
	"sita/utils/audio"
)

// Recognizer turns one finished WAV recording into text.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (string, error)
}

var errNoRecognizer = errors.New("no recognition key configured")

// STTHandler records the microphone in short windows until its token is set, then
// transcribes the whole recording in one request.
type STTHandler struct {
	*core.BaseHandler
	recorder audio.Recorder
	config   STTConfig
	logger   *core.Logger

	mu         sync.Mutex
	recognizer Recognizer
}

func NewSTTHandler(base *core.BaseHandler, recorder audio.Recorder, recognizer Recognizer, config STTConfig, logger *core.Logger) *STTHandler {
	def := DefaultConfig()
	if config.Window <= 0 || config.Window > time.Second {
		config.Window = def.Window
	}
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = def.MaxDuration
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &STTHandler{
		BaseHandler: base,
		recorder:    recorder,
		recognizer:  recognizer,
		config:      config,
		logger:      logger.With(map[string]interface{}{"component": "stt_handler"}),
	}
}

// SetRecognizer swaps the recognizer after the settings change. nil disables recognition.
func (h *STTHandler) SetRecognizer(r Recognizer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recognizer = r
}

// Capture blocks until token is set (or the maximum duration passes) and returns the recognized
// text. Every failure is a *core.RecognitionError.
func (h *STTHandler) Capture(ctx context.Context, turnID string, token *core.CancellationToken) (string, error) {
	h.mu.Lock()
	recognizer := h.recognizer
	h.mu.Unlock()

	if h.recorder == nil {
		return "", h.fail(turnID, core.RecognitionUnavailable, audio.ErrNoMicrophone)
	}

	h.Emit(&stt.STTListeningStartedEvent{}, turnID)
	pcm, windows, err := h.record(ctx, token)
	h.Emit(&stt.STTListeningStoppedEvent{Windows: windows}, turnID)
	if err != nil {
		return "", h.fail(turnID, core.RecognitionUnavailable, err)
	}
	if len(pcm) == 0 {
		return "", h.fail(turnID, core.RecognitionUnintelligible, nil)
	}
	if recognizer == nil {
		return "", h.fail(turnID, core.RecognitionUnavailable, errNoRecognizer)
	}

	wav, err := audio.PCMBytesToWavBytes(pcm, 1, h.config.SampleRate)
	if err != nil {
		return "", h.fail(turnID, core.RecognitionUnintelligible, err)
	}
	text, err := recognizer.Recognize(ctx, wav)
	if err != nil {
		return "", h.fail(turnID, core.RecognitionUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", h.fail(turnID, core.RecognitionUnintelligible, nil)
	}

	h.Emit(&stt.STTFinalOutputEvent{Text: text}, turnID)
	return text, nil
}

func (h *STTHandler) record(ctx context.Context, token *core.CancellationToken) ([]byte, int, error) {
	recCtx, release := token.Context(ctx)
	defer release()

	var (
		pcm     []byte
		windows int
		start   = time.Now()
	)
	for !token.IsCancelled() && time.Since(start) < h.config.MaxDuration {
		chunk, err := h.recorder.Record(recCtx, h.config.Window)
		if err != nil {
			if recCtx.Err() != nil {
				break
			}
			return nil, windows, err
		}
		windows++
		pcm = append(pcm, chunk.Data...)
	}
	seconds, _ := audio.GetPCMDurationSeconds(pcm, 1, h.config.SampleRate)
	h.logger.Debug("voice capture finished", "windows", windows, "bytes", len(pcm), "seconds", seconds)
	return pcm, windows, nil
}

func (h *STTHandler) fail(turnID string, kind core.RecognitionErrorKind, err error) error {
	recErr := &core.RecognitionError{Kind: kind, Err: err}
	h.logger.Debug("voice capture failed", "kind", kind.String(), "error", err)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	h.Emit(&stt.STTRecognitionFailedEvent{Kind: kind.String(), Error: msg}, turnID)
	return recErr
}
