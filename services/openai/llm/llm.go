package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"sita/core"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

const providerName = "completion"

// OpenAILLMService streams chat completions from any OpenAI-compatible endpoint
// (OpenAI itself, LM Studio, llama.cpp server, ...).
type OpenAILLMService struct {
	client      *openai.Client
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	logger      *core.Logger

	// Streaming management
	activeStreams map[string]*openai.ChatCompletionStream
	streamsMutex  sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc

	mu sync.RWMutex
}

// Config holds the configuration for the completion service
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		apiKey:        config.APIKey,
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		model:         config.Model,
		maxTokens:     config.MaxTokens,
		temperature:   config.Temperature,
		logger:        logger.With(map[string]interface{}{"component": "completion"}),
		activeStreams: make(map[string]*openai.ChatCompletionStream),
	}
}

// Init builds the HTTP client. No request is made; local servers are often started after the app.
func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return nil
}

func (s *OpenAILLMService) initLocked() {
	if s.client != nil {
		return
	}
	cfg := openai.DefaultConfig(s.apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	s.client = openai.NewClientWithConfig(cfg)
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

// Cleanup performs cleanup operations
func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllStreams()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.client = nil
	return nil
}

// Reset stops all active streams and starts over with a fresh client.
func (s *OpenAILLMService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllStreams()
	if s.cancel != nil {
		s.cancel()
	}
	s.client = nil
	s.initLocked()
	return nil
}

// stopAllStreams stops all active streaming sessions
func (s *OpenAILLMService) stopAllStreams() {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()

	for id, stream := range s.activeStreams {
		if stream != nil {
			stream.Close()
		}
		delete(s.activeStreams, id)
	}
}

func (s *OpenAILLMService) registerStream(id string, stream *openai.ChatCompletionStream) {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()
	s.activeStreams[id] = stream
}

func (s *OpenAILLMService) unregisterStream(id string) {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()
	delete(s.activeStreams, id)
}

// ActiveStreams reports how many replies are currently being streamed.
func (s *OpenAILLMService) ActiveStreams() int {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()
	return len(s.activeStreams)
}

// StreamReply opens a streamed completion for prompt. An empty model falls back to the configured one.
// The token is checked before every delta; once it is set the stream ends without error.
// Failures to open the stream are returned as *core.ProviderError.
func (s *OpenAILLMService) StreamReply(
	ctx context.Context,
	prompt []core.LLMMessage,
	model string,
	token *core.CancellationToken,
) (*ReplyStream, error) {
	s.mu.Lock()
	s.initLocked()
	client, serviceCtx := s.client, s.ctx
	s.mu.Unlock()

	if model == "" {
		model = s.model
	}
	if token == nil {
		token = core.NewCancellationToken()
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertMessages(prompt),
		MaxTokens:   s.maxTokens,
		Temperature: requestTemperature(s.temperature),
		Stream:      true,
	}

	// the request dies with the caller, the token, or a service Reset
	reqCtx, release := token.Context(ctx)
	stop := context.AfterFunc(serviceCtx, release)

	stream, err := client.CreateChatCompletionStream(reqCtx, req)
	if err != nil {
		stop()
		release()
		if token.IsCancelled() {
			return &ReplyStream{token: token, cancelled: true, done: true}, nil
		}
		s.logger.Debug("completion request failed", "model", model, "error", err)
		return nil, toProviderError(err)
	}

	id := uuid.New().String()
	s.registerStream(id, stream)

	return &ReplyStream{
		stream: stream,
		token:  token,
		release: func() {
			stop()
			release()
			s.unregisterStream(id)
		},
	}, nil
}

// ReplyStream yields reply deltas in arrival order. It is single use.
type ReplyStream struct {
	stream    *openai.ChatCompletionStream
	token     *core.CancellationToken
	release   func()
	cancelled bool
	done      bool
	closeOnce sync.Once
}

// Recv returns the next non-empty delta. It returns io.EOF when the provider ends the reply
// or when the token has been set, and *core.ProviderError when the connection fails mid-reply.
func (r *ReplyStream) Recv() (string, error) {
	if r.done {
		return "", io.EOF
	}
	for {
		if r.token.IsCancelled() {
			return r.finish(true)
		}

		resp, err := r.stream.Recv()
		if errors.Is(err, io.EOF) {
			return r.finish(false)
		}
		if err != nil {
			if r.token.IsCancelled() {
				return r.finish(true)
			}
			r.Close()
			r.done = true
			return "", toProviderError(err)
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		if r.token.IsCancelled() {
			return r.finish(true)
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (r *ReplyStream) finish(cancelled bool) (string, error) {
	r.cancelled = cancelled
	r.done = true
	r.Close()
	return "", io.EOF
}

// Cancelled reports whether the stream ended because the token was set.
func (r *ReplyStream) Cancelled() bool {
	return r.cancelled
}

func (r *ReplyStream) Close() {
	r.closeOnce.Do(func() {
		if r.stream != nil {
			r.stream.Close()
		}
		if r.release != nil {
			r.release()
		}
	})
}

// Stream is StreamReply behind the core.ReplyStream interface.
func (s *OpenAILLMService) Stream(
	ctx context.Context,
	prompt []core.LLMMessage,
	model string,
	token *core.CancellationToken,
) (core.ReplyStream, error) {
	stream, err := s.StreamReply(ctx, prompt, model, token)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func toProviderError(err error) *core.ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &core.ProviderError{Provider: providerName, Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &core.ProviderError{Provider: providerName, Status: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return &core.ProviderError{Provider: providerName, Err: fmt.Errorf("stream: %w", err)}
}

func convertMessages(messages []core.LLMMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    convertRole(msg.Role),
			Content: msg.Message,
		})
	}
	return out
}

func convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// requestTemperature keeps a zero temperature on the wire; go-openai omits zero values.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
