package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sita/core"
	"sita/events/llm"
	"sita/events/session"
	"sita/factories"
	"sita/transcript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedStream struct {
	deltas    []string
	token     *core.CancellationToken
	block     bool
	err       error
	i         int
	cancelled bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.token.IsCancelled() {
		s.cancelled = true
		return "", io.EOF
	}
	if s.i < len(s.deltas) {
		d := s.deltas[s.i]
		s.i++
		return d, nil
	}
	if s.err != nil {
		return "", s.err
	}
	if s.block {
		<-s.token.Done()
		s.cancelled = true
	}
	return "", io.EOF
}

func (s *scriptedStream) Cancelled() bool { return s.cancelled }
func (s *scriptedStream) Close()          {}

type fakeLLM struct {
	mu       sync.Mutex
	prompts  [][]core.LLMMessage
	deltas   []string
	block    bool
	openErr  error
	midErr   error
	cleanups int
}

func (f *fakeLLM) Init(ctx context.Context) error { return nil }
func (f *fakeLLM) Reset() error                   { return nil }
func (f *fakeLLM) Cleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return nil
}

func (f *fakeLLM) Stream(ctx context.Context, prompt []core.LLMMessage, model string, token *core.CancellationToken) (core.ReplyStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &scriptedStream{deltas: f.deltas, token: token, block: f.block, err: f.midErr}, nil
}

func (f *fakeLLM) lastPrompt() []core.LLMMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

type fakeLocal struct {
	mu     sync.Mutex
	spoken []string
}

func (f *fakeLocal) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeLocal) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

type fakeRecorder struct{}

func (fakeRecorder) Record(ctx context.Context, window time.Duration) (core.AudioChunk, error) {
	select {
	case <-time.After(5 * time.Millisecond):
	case <-ctx.Done():
	}
	return core.AudioChunk{Data: make([]byte, 64), SampleRate: 16000, Channels: 1, Format: core.PCM}, nil
}

type fakeRecognizer struct{ text string }

func (f fakeRecognizer) Recognize(ctx context.Context, wav []byte) (string, error) {
	return f.text, nil
}

type harness struct {
	r     *Runner
	llm   *fakeLLM
	local *fakeLocal
	dir   string
}

func newHarness(t *testing.T, llmSvc *fakeLLM) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := factories.DefaultSettingsConfig()
	cfg.SystemPrompt = "S"
	cfg.HistoryDir = filepath.Join(dir, "history")
	settings := factories.NewSettingsStore(filepath.Join(dir, "sita_config.json"), cfg)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	local := &fakeLocal{}
	r, err := NewRunner(settings, factories.SessionComponents{
		LLM:        llmSvc,
		LocalTTS:   local,
		Recorder:   fakeRecorder{},
		Recognizer: fakeRecognizer{text: "hello there"},
	}, Config{
		Logger: core.NewLogger(func(string, string, map[string]interface{}) {}),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return &harness{r: r, llm: llmSvc, local: local, dir: dir}
}

// waitFor reads events until match returns true and returns everything seen.
func waitFor(t *testing.T, r *Runner, match func(core.IEvent) bool) []core.IEvent {
	t.Helper()
	var seen []core.IEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case p, ok := <-r.Events():
			require.True(t, ok, "events closed")
			seen = append(seen, p.Event)
			if match(p.Event) {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out, saw %d events", len(seen))
		}
	}
}

func isIdle(ev core.IEvent) bool {
	s, ok := ev.(*session.TurnStateChangedEvent)
	return ok && s.State == core.TurnIdle.String()
}

func statusLines(events []core.IEvent) []string {
	var lines []string
	for _, ev := range events {
		if s, ok := ev.(*core.StatusEvent); ok {
			lines = append(lines, s.Line)
		}
	}
	return lines
}

func writeSession(t *testing.T, h *harness, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "history", name), []byte(content), 0o644))
}

func TestSubmitBuildsPromptFromWindowAndAppendsReply(t *testing.T) {
	h := newHarness(t, &fakeLLM{deltas: []string{"Fine, ", "thanks."}})
	writeSession(t, h, "session_20260101_120000.txt", "User: hi\nAI: hello\nUser: how are you\n")
	_, err := h.r.ResumeSession("session_20260101_120000.txt")
	require.NoError(t, err)

	require.NoError(t, h.r.Submit("  ok "))
	events := waitFor(t, h.r, isIdle)

	assert.Equal(t, []core.LLMMessage{
		{Role: core.LLMMessageRoleSystem, Message: "S"},
		{Role: core.LLMMessageRoleUser, Message: "hi"},
		{Role: core.LLMMessageRoleAssistant, Message: "hello"},
		{Role: core.LLMMessageRoleUser, Message: "how are you"},
		{Role: core.LLMMessageRoleUser, Message: "ok"},
	}, h.llm.lastPrompt())

	var states []string
	for _, ev := range events {
		if s, ok := ev.(*session.TurnStateChangedEvent); ok {
			states = append(states, s.State)
		}
	}
	assert.Equal(t, []string{"awaiting_reply", "streaming", "complete", "idle"}, states)

	_, path, turns := h.r.Current()
	require.Len(t, turns, 5)
	assert.Equal(t, core.Turn{Role: core.RoleUser, Text: "ok"}, turns[3])
	assert.Equal(t, core.Turn{Role: core.RoleAssistant, Text: "Fine, thanks."}, turns[4])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "User: hi\nAI: hello\nUser: how are you\nUser: ok\nAI: Fine, thanks.\n", string(data))

	require.Eventually(t, func() bool { return len(h.local.texts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Fine, thanks."}, h.local.texts())
}

func TestResumeThenAppendWritesSameFile(t *testing.T) {
	h := newHarness(t, &fakeLLM{openErr: &core.ProviderError{Provider: "completion", Status: 401, Message: "bad key"}})
	writeSession(t, h, "session_20260101_120000.txt", "User: a\nAI: b\n")

	turns, err := h.r.ResumeSession("session_20260101_120000.txt")
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{{Role: core.RoleUser, Text: "a"}, {Role: core.RoleAssistant, Text: "b"}}, turns)

	resumed := waitFor(t, h.r, func(ev core.IEvent) bool { _, ok := ev.(*session.SessionResumedEvent); return ok })
	assert.Len(t, resumed[len(resumed)-1].(*session.SessionResumedEvent).Turns, 2)

	require.NoError(t, h.r.Submit("c"))
	events := waitFor(t, h.r, isIdle)
	assert.Contains(t, statusLines(events), "[Error] completion provider: status 401: bad key")

	data, err := os.ReadFile(filepath.Join(h.dir, "history", "session_20260101_120000.txt"))
	require.NoError(t, err)
	assert.Equal(t, "User: a\nAI: b\nUser: c\n", string(data))
}

func TestMidStreamFailureDropsPartialReply(t *testing.T) {
	h := newHarness(t, &fakeLLM{deltas: []string{"half"}, midErr: &core.ProviderError{Provider: "completion", Message: "reset"}})
	_, err := h.r.StartNewSession()
	require.NoError(t, err)

	require.NoError(t, h.r.Submit("hi"))
	events := waitFor(t, h.r, isIdle)

	var failed bool
	for _, ev := range events {
		if _, ok := ev.(*llm.LLMResponseFailedEvent); ok {
			failed = true
		}
	}
	assert.True(t, failed)
	_, _, turns := h.r.Current()
	assert.Equal(t, []core.Turn{{Role: core.RoleUser, Text: "hi"}}, turns)
}

func TestCancelKeepsPartialReplyWithoutSpeaking(t *testing.T) {
	h := newHarness(t, &fakeLLM{deltas: []string{"partial "}, block: true})
	_, err := h.r.StartNewSession()
	require.NoError(t, err)

	require.NoError(t, h.r.Submit("tell me a story"))
	waitFor(t, h.r, func(ev core.IEvent) bool { _, ok := ev.(*llm.LLMResponseChunkEvent); return ok })

	assert.ErrorIs(t, h.r.Submit("another"), ErrTurnInFlight)

	h.r.Cancel()
	h.r.Cancel()
	events := waitFor(t, h.r, isIdle)
	assert.Equal(t, []string{stoppedLine}, statusLines(events))

	_, _, turns := h.r.Current()
	require.Len(t, turns, 2)
	assert.Equal(t, core.Turn{Role: core.RoleAssistant, Text: "partial"}, turns[1])
	assert.Equal(t, core.TurnIdle, h.r.State())

	require.NoError(t, h.r.Close())
	assert.Empty(t, h.local.texts())
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	h := newHarness(t, &fakeLLM{})
	_, err := h.r.StartNewSession()
	require.NoError(t, err)

	assert.ErrorIs(t, h.r.Submit(" \n\t"), transcript.ErrEmptyTurn)
	assert.Empty(t, h.llm.prompts)
}

func TestSubmitWithoutSession(t *testing.T) {
	h := newHarness(t, &fakeLLM{})
	assert.ErrorIs(t, h.r.Submit("hi"), ErrNoSession)
}

func TestSessionsListedMostRecentFirst(t *testing.T) {
	h := newHarness(t, &fakeLLM{})
	first, err := h.r.StartNewSession()
	require.NoError(t, err)
	second, err := h.r.StartNewSession()
	require.NoError(t, err)

	refs, err := h.r.ListSessions()
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, second.Name, refs[0].Name)
	assert.Equal(t, first.Name, refs[1].Name)

	id, _, turns := h.r.Current()
	assert.Equal(t, second.SessionID, id)
	assert.Empty(t, turns)

	logs, err := os.ReadDir(filepath.Join(h.dir, "history", "logs"))
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestResumeMissingSession(t *testing.T) {
	h := newHarness(t, &fakeLLM{})
	_, err := h.r.ResumeSession("session_19990101_000000.txt")
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestExportAndImport(t *testing.T) {
	h := newHarness(t, &fakeLLM{deltas: []string{"pong"}})
	_, err := h.r.StartNewSession()
	require.NoError(t, err)
	require.NoError(t, h.r.Submit("ping"))
	waitFor(t, h.r, isIdle)

	out := filepath.Join(h.dir, "export.txt")
	require.NoError(t, h.r.Export(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "User: ping\nAI: pong\n", string(data))

	in := filepath.Join(h.dir, "import.txt")
	require.NoError(t, os.WriteFile(in, []byte("User: x\nnoise\nAI: y\n"), 0o644))
	turns, err := h.r.Import(in)
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{{Role: core.RoleUser, Text: "x"}, {Role: core.RoleAssistant, Text: "y"}}, turns)

	_, path, _ := h.r.Current()
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "User: x\nAI: y\n", string(data))
}

func TestExportByExtension(t *testing.T) {
	h := newHarness(t, &fakeLLM{deltas: []string{"pong"}})
	_, err := h.r.StartNewSession()
	require.NoError(t, err)
	require.NoError(t, h.r.Submit("ping"))
	waitFor(t, h.r, isIdle)

	out := filepath.Join(h.dir, "export.yaml")
	require.NoError(t, h.r.Export(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	id, _, _ := h.r.Current()
	assert.Contains(t, string(data), id)
	assert.Contains(t, string(data), "text: pong")

	md := filepath.Join(h.dir, "export.md")
	require.NoError(t, h.r.Export(md))
	data, err = os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(data), "**AI:**\n\npong")

	err = h.r.Export(filepath.Join(h.dir, "missing", "out.json"))
	var pe *core.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestVoiceCaptureSubmitsRecognizedText(t *testing.T) {
	h := newHarness(t, &fakeLLM{deltas: []string{"hi!"}})
	_, err := h.r.StartNewSession()
	require.NoError(t, err)

	require.NoError(t, h.r.StartVoice())
	assert.ErrorIs(t, h.r.StartVoice(), ErrVoiceActive)
	time.Sleep(20 * time.Millisecond)
	h.r.StopVoice()

	waitFor(t, h.r, isIdle)
	_, _, turns := h.r.Current()
	require.Len(t, turns, 2)
	assert.Equal(t, "hello there", turns[0].Text)
	assert.False(t, h.r.VoiceActive())
}

func TestUpdateSettingsRebuildsProviders(t *testing.T) {
	h := newHarness(t, &fakeLLM{})
	next := &fakeLLM{deltas: []string{"new"}}
	var rebuilt factories.SettingsConfig
	h.r.rebuild = func(cfg factories.SettingsConfig) factories.SessionComponents {
		rebuilt = cfg
		return factories.SessionComponents{LLM: next}
	}

	cfg, err := h.r.UpdateSettings(func(c *factories.SettingsConfig) error { return c.Set("model_name", "llama-3") })
	require.NoError(t, err)
	assert.Equal(t, "llama-3", cfg.ModelName)
	assert.Equal(t, "llama-3", rebuilt.ModelName)
	assert.Equal(t, 1, h.llm.cleanups)

	_, err = h.r.StartNewSession()
	require.NoError(t, err)
	require.NoError(t, h.r.Submit("hi"))
	waitFor(t, h.r, isIdle)
	assert.Len(t, next.prompts, 1)
	assert.Empty(t, h.llm.prompts)
}

func TestCloseIsIdempotentAndClosesEvents(t *testing.T) {
	h := newHarness(t, &fakeLLM{})
	require.NoError(t, h.r.Close())
	require.NoError(t, h.r.Close())
	h.r.Cancel()

	for range h.r.Events() {
	}
	assert.ErrorIs(t, h.r.Submit("x"), ErrClosed)
}
