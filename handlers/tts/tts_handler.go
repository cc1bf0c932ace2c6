package tts

import (
	"context"
	"errors"
	"strings"
	"sync"

	"sita/core"
	"sita/events/tts"
	"sita/utils/audio"
)

// RemoteService synthesizes a whole utterance into one clip.
type RemoteService interface {
	Synthesize(ctx context.Context, text string) core.SynthesisResult
}

// LocalService speaks directly through the machine's own voice.
type LocalService interface {
	Speak(ctx context.Context, text string) error
}

var errNoLocal = errors.New("local tts: not configured")

type Engine string

const (
	EngineNone   Engine = ""
	EngineRemote Engine = "remote"
	EngineLocal  Engine = "local"
)

// SpeakResult describes which engine ended up speaking. Speak never fails outright.
type SpeakResult struct {
	Engine        Engine
	RemoteFailure *core.ProviderError // set when the remote attempt failed and local took over
	LocalErr      error
	Interrupted   bool
}

// TTSHandler owns the single active playback. Starting a new utterance or calling Stop
// silences whatever is playing.
type TTSHandler struct {
	*core.BaseHandler
	config TTSConfig
	player audio.Player
	local  LocalService
	logger *core.Logger

	mu      sync.Mutex
	remote  RemoteService
	current context.CancelFunc
	gen     uint64
}

func NewTTSHandler(
	base *core.BaseHandler,
	remote RemoteService,
	local LocalService,
	player audio.Player,
	config TTSConfig,
	logger *core.Logger,
) *TTSHandler {
	if config.RemoteTimeout <= 0 {
		config.RemoteTimeout = DefaultConfig().RemoteTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TTSHandler{
		BaseHandler: base,
		config:      config,
		remote:      remote,
		local:       local,
		player:      player,
		logger:      logger.With(map[string]interface{}{"component": "tts_handler"}),
	}
}

// SetRemote swaps the remote provider, used after the settings change.
func (h *TTSHandler) SetRemote(remote RemoteService) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remote = remote
}

func (h *TTSHandler) begin(parent context.Context) (context.Context, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		h.current()
	}
	ctx, cancel := context.WithCancel(parent)
	h.gen++
	gen := h.gen
	h.current = cancel

	return ctx, func() {
		cancel()
		h.mu.Lock()
		if h.gen == gen {
			h.current = nil
		}
		h.mu.Unlock()
	}
}

// Stop silences the active playback, if any.
func (h *TTSHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		h.current()
		h.current = nil
	}
}

// Speak says text, preferring the remote voice when a key is configured and falling back to
// the local engine exactly once. It blocks until playback ends, Stop is called, or token is set.
func (h *TTSHandler) Speak(
	parent context.Context,
	turnID string,
	text string,
	cfg SpeechConfig,
	token *core.CancellationToken,
) SpeakResult {
	text = normalizeTextForTTS(text)
	if text == "" {
		return SpeakResult{Engine: EngineNone}
	}

	ctx, done := h.begin(parent)
	defer done()
	if token != nil {
		go func() {
			select {
			case <-token.Done():
				h.Stop()
			case <-ctx.Done():
			}
		}()
	}

	h.mu.Lock()
	remote := h.remote
	h.mu.Unlock()

	var result SpeakResult
	if strings.TrimSpace(cfg.APIKey) != "" && remote != nil {
		failure := h.speakRemote(ctx, turnID, remote, text)
		if failure == nil {
			return SpeakResult{Engine: EngineRemote, Interrupted: ctx.Err() != nil}
		}
		if ctx.Err() != nil {
			return SpeakResult{Engine: EngineNone, Interrupted: true}
		}
		result.RemoteFailure = failure
		h.logger.Debug("remote speech failed, using local voice", "turn", turnID, "error", failure)
		if cfg.Verbose {
			h.Emit(&tts.TTSFallbackEvent{Reason: failure.Error()}, turnID)
			h.Emit(&core.StatusEvent{Line: core.StatusLine(failure)}, turnID)
		}
	}

	result.Engine = EngineLocal
	if h.local == nil {
		result.LocalErr = errNoLocal
	} else {
		h.Emit(&tts.TTSSpeakingStartedEvent{Engine: string(EngineLocal)}, turnID)
		result.LocalErr = h.local.Speak(ctx, text)
		result.Interrupted = ctx.Err() != nil
		h.Emit(&tts.TTSSpeakingEndedEvent{Engine: string(EngineLocal), Interrupted: result.Interrupted}, turnID)
	}

	if result.LocalErr != nil && !result.Interrupted {
		h.logger.Debug("local speech failed", "turn", turnID, "error", result.LocalErr)
		if cfg.Verbose {
			h.Emit(&core.StatusEvent{Line: "[TTS Error] " + result.LocalErr.Error()}, turnID)
		}
	}
	return result
}

// speakRemote returns nil once the clip has been played (or playback was stopped).
func (h *TTSHandler) speakRemote(ctx context.Context, turnID string, remote RemoteService, text string) *core.ProviderError {
	rctx, cancel := context.WithTimeout(ctx, h.config.RemoteTimeout)
	res := remote.Synthesize(rctx, text)
	cancel()

	if !res.OK() {
		if res.Failure == nil {
			return &core.ProviderError{Provider: "speech", Message: "no audio returned"}
		}
		return res.Failure
	}
	if ctx.Err() != nil {
		return nil
	}

	h.Emit(&tts.TTSSpeakingStartedEvent{Engine: string(EngineRemote)}, turnID)
	err := h.player.Play(ctx, *res.Clip)
	h.Emit(&tts.TTSSpeakingEndedEvent{Engine: string(EngineRemote), Interrupted: ctx.Err() != nil}, turnID)

	if err != nil && ctx.Err() == nil {
		// audio arrived but could not be played here; the local voice still can
		return &core.ProviderError{Provider: "speech", Message: "playback failed", Err: err}
	}
	return nil
}
