package elevenlabs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sita/core"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeSendsExpectedRequest(t *testing.T) {
	var got elRequest
	var path, query, key, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, query = r.URL.Path, r.URL.RawQuery
		key, accept = r.Header.Get("xi-api-key"), r.Header.Get("Accept")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	e := NewElevenLabsTTS(ElevenLabsTTSConfig{
		APIKey:          "k",
		BaseURL:         srv.URL + "/v1/text-to-speech",
		Stability:       0.4,
		SimilarityBoost: 0.85,
	}, nil)
	res := e.Synthesize(context.Background(), "Hello there")

	require.True(t, res.OK())
	assert.Equal(t, []byte("ID3-audio"), res.Clip.Data)
	assert.Equal(t, core.MP3, res.Clip.Format)

	assert.Equal(t, "/v1/text-to-speech/cgSgspJ2msm6clMCkdW9", path)
	assert.Equal(t, "output_format=mp3_44100_128", query)
	assert.Equal(t, "k", key)
	assert.Equal(t, "audio/mpeg", accept)
	assert.Equal(t, "Hello there", got.Text)
	assert.Equal(t, "eleven_multilingual_v2", got.ModelID)
	assert.InDelta(t, 0.4, got.VoiceSettings.Stability, 1e-9)
	assert.InDelta(t, 0.85, got.VoiceSettings.SimilarityBoost, 1e-9)
}

func TestSynthesizeSendsZeroVoiceSettings(t *testing.T) {
	var raw map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &raw))
		w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	e := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	require.True(t, e.Synthesize(context.Background(), "hi").OK())

	settings, ok := raw["voice_settings"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), settings["stability"])
	assert.Equal(t, float64(0), settings["similarity_boost"])
}

func TestSynthesizeReportsStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	e := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "bad", BaseURL: srv.URL}, nil)
	res := e.Synthesize(context.Background(), "hi")

	require.False(t, res.OK())
	assert.Nil(t, res.Clip)
	assert.Equal(t, 401, res.Failure.Status)
	assert.Equal(t, "Invalid API key", res.Failure.Message)
	assert.Equal(t, "speech", res.Failure.Provider)
}

func TestSynthesizeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	e := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	res := e.Synthesize(context.Background(), "hi")

	require.False(t, res.OK())
	assert.Zero(t, res.Failure.Status)
	assert.Error(t, res.Failure.Err)
}

func TestSynthesizeWithoutKey(t *testing.T) {
	res := NewElevenLabsTTS(ElevenLabsTTSConfig{}, nil).Synthesize(context.Background(), "hi")
	require.False(t, res.OK())
}

func TestDecodeFormat(t *testing.T) {
	assert.Equal(t, core.AudioChunk{Format: core.ULAW, SampleRate: 8000, Channels: 1}, decodeFormat("ulaw_8000"))
	assert.Equal(t, core.AudioChunk{Format: core.PCM, SampleRate: 24000, Channels: 1}, decodeFormat("pcm_24000"))
	assert.Equal(t, core.MP3, decodeFormat("mp3_44100_128").Format)
}
