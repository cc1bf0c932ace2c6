package stt

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

const providerName = "recognition"

// DeepgramConfig holds configuration options for Deepgram prerecorded recognition
type DeepgramConfig struct {
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url"`
	Model       string        `json:"model"`
	Language    string        `json:"language"`
	Punctuate   bool          `json:"punctuate"`
	SmartFormat bool          `json:"smart_format"`
	Numerals    bool          `json:"numerals"`
	Keywords    []string      `json:"keywords"`
	Timeout     time.Duration `json:"-"`
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:     "https://api.deepgram.com",
		Model:       "nova-2",
		Language:    "en-US",
		Punctuate:   true,
		SmartFormat: true,
		Timeout:     30 * time.Second,
	}
}

// DeepgramSTTService transcribes one finished recording per call.
type DeepgramSTTService struct {
	config *DeepgramConfig
	client *http.Client
	logger *core.Logger
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepgram.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = "nova-2"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	return &DeepgramSTTService{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(map[string]interface{}{"component": "deepgram"}),
	}
}

func (d *DeepgramSTTService) Init(ctx context.Context) error {
	if d.config.APIKey == "" {
		return fmt.Errorf("Deepgram API key is required")
	}
	return nil
}

func (d *DeepgramSTTService) Cleanup() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *DeepgramSTTService) Reset() error {
	d.client.CloseIdleConnections()
	return nil
}

// Recognize posts a WAV recording and returns the best transcript, which may be empty.
// Failures are returned as *core.ProviderError.
func (d *DeepgramSTTService) Recognize(ctx context.Context, wav []byte) (string, error) {
	if d.config.APIKey == "" {
		return "", &core.ProviderError{Provider: providerName, Message: "no API key configured"}
	}

	endpoint := d.config.BaseURL + "/v1/listen?" + d.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", &core.ProviderError{Provider: providerName, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	req.Header.Set("Content-Type", "audio/wav")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return "", &core.ProviderError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &core.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &core.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	var result ListenV1Response
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return "", &core.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	transcript := strings.TrimSpace(result.Transcript())
	d.logger.Debug("recognition finished", "bytes", len(wav), "chars", len(transcript), "elapsed", time.Since(start))
	return transcript, nil
}

func (d *DeepgramSTTService) query() url.Values {
	q := url.Values{}
	q.Set("model", d.config.Model)
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	}
	if d.config.Punctuate {
		q.Set("punctuate", "true")
	}
	if d.config.SmartFormat {
		q.Set("smart_format", "true")
	}
	if d.config.Numerals {
		q.Set("numerals", "true")
	}
	for _, kw := range d.config.Keywords {
		q.Add("keywords", kw)
	}
	return q
}

func errorMessage(raw []byte) string {
	var msg ListenV1Error
	if err := sonic.Unmarshal(raw, &msg); err == nil {
		switch {
		case msg.ErrMsg != "":
			return msg.ErrMsg
		case msg.Reason != "":
			return msg.Reason
		}
	}
	return strings.TrimSpace(string(raw))
}

// ListenV1Response is the subset of the prerecorded response we read.
type ListenV1Response struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
		Channels  int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcript returns the first alternative of the first channel.
func (r ListenV1Response) Transcript() string {
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return r.Results.Channels[0].Alternatives[0].Transcript
}

type ListenV1Error struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
	Reason  string `json:"reason"`
}

// IsAuthError reports whether err is a rejected key.
func IsAuthError(err error) bool {
	var pe *core.ProviderError
	return errors.As(err, &pe) && (pe.Status == http.StatusUnauthorized || pe.Status == http.StatusForbidden)
}
