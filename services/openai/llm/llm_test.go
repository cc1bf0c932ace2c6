package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sita/core"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Stream      bool    `json:"stream"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chunk(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", content)
}

func sseServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, flush func())) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		handler(w, r, func() {
			if flusher != nil {
				flusher.Flush()
			}
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(url string) *OpenAILLMService {
	return NewOpenAILLMService(Config{APIKey: "test", BaseURL: url, Model: "default-model", Temperature: 0.7}, nil)
}

func TestStreamReplyAccumulatesDeltas(t *testing.T) {
	var got capturedRequest
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request, flush func()) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &got))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))

		for _, c := range []string{"Hel", "", "lo"} {
			io.WriteString(w, chunk(c))
			flush()
		}
		io.WriteString(w, "data: [DONE]\n\n")
	})

	svc := newService(srv.URL)
	require.NoError(t, svc.Init(context.Background()))

	prompt := []core.LLMMessage{
		{Role: core.LLMMessageRoleSystem, Message: "S"},
		{Role: core.LLMMessageRoleUser, Message: "hi"},
	}
	stream, err := svc.StreamReply(context.Background(), prompt, "", core.NewCancellationToken())
	require.NoError(t, err)

	var deltas []string
	reply, cancelled, err := core.AccumulateReply(stream, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, "Hello", reply)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)

	assert.Equal(t, "default-model", got.Model)
	assert.True(t, got.Stream)
	assert.InDelta(t, 0.7, got.Temperature, 0.001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
	assert.Zero(t, svc.ActiveStreams())
}

func TestStreamReplySendsZeroTemperature(t *testing.T) {
	var raw map[string]interface{}
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request, flush func()) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &raw))
		io.WriteString(w, chunk("ok"))
		io.WriteString(w, "data: [DONE]\n\n")
		flush()
	})

	svc := NewOpenAILLMService(Config{APIKey: "test", BaseURL: srv.URL, Model: "m"}, nil)
	require.NoError(t, svc.Init(context.Background()))

	prompt := []core.LLMMessage{{Role: core.LLMMessageRoleUser, Message: "hi"}}
	stream, err := svc.StreamReply(context.Background(), prompt, "", core.NewCancellationToken())
	require.NoError(t, err)
	reply, _, err := core.AccumulateReply(stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	temp, ok := raw["temperature"].(float64)
	require.True(t, ok, "temperature missing from request")
	assert.InDelta(t, 0, temp, 1e-9)
}

func TestStreamReplyStopsWhenTokenSet(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)

	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request, flush func()) {
		io.WriteString(w, chunk("one "))
		io.WriteString(w, chunk("two "))
		flush()
		select {
		case <-hold:
		case <-r.Context().Done():
		}
	})

	svc := newService(srv.URL)
	token := core.NewCancellationToken()
	stream, err := svc.StreamReply(context.Background(), nil, "m", token)
	require.NoError(t, err)

	var deltas []string
	reply, cancelled, err := core.AccumulateReply(stream, func(d string) {
		deltas = append(deltas, d)
		if len(deltas) == 2 {
			token.Cancel()
		}
	})
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, "one two ", reply)
	assert.Len(t, deltas, 2)
}

func TestStreamReplyUnblocksWhenTokenSetDuringWait(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request, flush func()) {
		io.WriteString(w, chunk("partial"))
		flush()
		<-r.Context().Done()
	})

	svc := newService(srv.URL)
	token := core.NewCancellationToken()
	stream, err := svc.StreamReply(context.Background(), nil, "m", token)
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", first)

	time.AfterFunc(50*time.Millisecond, token.Cancel)
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, stream.Cancelled())
}

func TestStreamReplyAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid API key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	svc := newService(srv.URL)
	_, err := svc.StreamReply(context.Background(), nil, "m", core.NewCancellationToken())

	var pe *core.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 401, pe.Status)
	assert.Equal(t, "Invalid API key", pe.Message)
	assert.Equal(t, "completion", pe.Provider)
}

func TestStreamReplyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := newService(url)
	_, err := svc.StreamReply(context.Background(), nil, "m", nil)

	var pe *core.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Zero(t, pe.Status)
}

func TestStreamReplyMidStreamError(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request, flush func()) {
		io.WriteString(w, chunk("so far"))
		flush()
		io.WriteString(w, `data: {"error":{"message":"overloaded","type":"server_error"}}`+"\n\n")
	})

	svc := newService(srv.URL)
	stream, err := svc.StreamReply(context.Background(), nil, "m", core.NewCancellationToken())
	require.NoError(t, err)

	reply, cancelled, err := core.AccumulateReply(stream, nil)
	assert.Equal(t, "so far", reply)
	assert.False(t, cancelled)

	var pe *core.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, strings.Contains(pe.Error(), "overloaded"))
}

func TestResetClosesActiveStreams(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request, flush func()) {
		io.WriteString(w, chunk("x"))
		flush()
		<-r.Context().Done()
	})

	svc := newService(srv.URL)
	stream, err := svc.StreamReply(context.Background(), nil, "m", core.NewCancellationToken())
	require.NoError(t, err)
	assert.Equal(t, 1, svc.ActiveStreams())

	require.NoError(t, svc.Reset())
	assert.Zero(t, svc.ActiveStreams())
	stream.Close()
}
