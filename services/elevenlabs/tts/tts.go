package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sita/core"

	"github.com/bytedance/sonic"
)

const providerName = "speech"

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id"`
	OutputFormat string `json:"output_format"` // mp3_44100_128, pcm_16000..pcm_44100 or ulaw_8000

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`

	Timeout time.Duration `json:"-"`
}

// ElevenLabsTTS calls the ElevenLabs text-to-speech REST endpoint and returns one clip per call.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	client *http.Client
	logger *core.Logger
}

type (
	elRequest struct {
		Text          string          `json:"text"`
		ModelID       string          `json:"model_id"`
		VoiceSettings elVoiceSettings `json:"voice_settings"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elErrorMessage struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.elevenlabs.io/v1/text-to-speech"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.VoiceID == "" {
		config.VoiceID = "cgSgspJ2msm6clMCkdW9"
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_multilingual_v2"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "mp3_44100_128"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(map[string]interface{}{"component": "elevenlabs"}),
	}
}

func (e *ElevenLabsTTS) Init(ctx context.Context) error {
	if e.config.APIKey == "" {
		return errors.New("ElevenLabs API key is required")
	}
	return nil
}

func (e *ElevenLabsTTS) Cleanup() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *ElevenLabsTTS) Reset() error {
	e.client.CloseIdleConnections()
	return nil
}

// Synthesize never returns an error; failures come back inside the result so the caller
// can pick a fallback without unwinding.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) core.SynthesisResult {
	if e.config.APIKey == "" {
		return failure(0, "no API key configured", nil)
	}

	body, err := sonic.Marshal(elRequest{
		Text:    text,
		ModelID: e.config.ModelID,
		VoiceSettings: elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
	})
	if err != nil {
		return failure(0, "encode request", err)
	}

	endpoint := fmt.Sprintf("%s/%s?output_format=%s",
		e.config.BaseURL, url.PathEscape(e.config.VoiceID), url.QueryEscape(e.config.OutputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(0, "build request", err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptHeader(e.config.OutputFormat))

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return failure(0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return failure(resp.StatusCode, errorMessage(raw), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(resp.StatusCode, "read audio", err)
	}
	if len(data) == 0 {
		return failure(resp.StatusCode, "empty audio", nil)
	}

	chunk := decodeFormat(e.config.OutputFormat)
	chunk.Data = data
	chunk.Timestamp = time.Now()
	e.logger.Debug("speech synthesized", "bytes", len(data), "format", e.config.OutputFormat, "elapsed", time.Since(start))
	return core.SynthesisResult{Clip: &chunk}
}

func failure(status int, message string, err error) core.SynthesisResult {
	return core.SynthesisResult{Failure: &core.ProviderError{Provider: providerName, Status: status, Message: message, Err: err}}
}

func errorMessage(raw []byte) string {
	var msg elErrorMessage
	if err := sonic.Unmarshal(raw, &msg); err == nil && msg.Detail.Message != "" {
		return msg.Detail.Message
	}
	return strings.TrimSpace(string(raw))
}

func acceptHeader(outputFormat string) string {
	if strings.HasPrefix(outputFormat, "mp3") {
		return "audio/mpeg"
	}
	return "application/octet-stream"
}

// decodeFormat maps an output_format value onto the chunk layout it produces.
func decodeFormat(outputFormat string) core.AudioChunk {
	codec, rate, _ := strings.Cut(outputFormat, "_")
	sampleRate := 0
	fmt.Sscanf(rate, "%d", &sampleRate)

	switch codec {
	case "pcm":
		return core.AudioChunk{Format: core.PCM, SampleRate: sampleRate, Channels: 1}
	case "ulaw":
		return core.AudioChunk{Format: core.ULAW, SampleRate: sampleRate, Channels: 1}
	default:
		return core.AudioChunk{Format: core.MP3, SampleRate: sampleRate, Channels: 1}
	}
}
