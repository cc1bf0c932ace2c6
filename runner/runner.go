package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sita/core"
	"sita/events/session"
	"sita/factories"
	contexthandler "sita/handlers/context"
	llmhandler "sita/handlers/llm"
	stthandler "sita/handlers/stt"
	ttshandler "sita/handlers/tts"
	"sita/transcript"
	"sita/transcript/export"

	"github.com/google/uuid"
)

var (
	ErrTurnInFlight = errors.New("a reply is already in progress")
	ErrVoiceActive  = errors.New("voice capture is already running")
	ErrNoSession    = errors.New("no active session")
	ErrClosed       = errors.New("runner is closed")
	errNoLLM        = errors.New("runner: no completion service")
)

const stoppedLine = "[System] Stopped AI response."

type Config struct {
	HistoryDir  string           // overrides the settings value when set
	EventBuffer int              // size of the Events channel
	Now         func() time.Time // clock used to name sessions
	Logger      *core.Logger

	// Rebuild constructs providers from new settings after UpdateSettings. nil keeps the current ones.
	Rebuild func(factories.SettingsConfig) factories.SessionComponents
}

// Runner is the single entry point for every user command. It owns the active transcript and
// runs each reply, voice capture and playback on its own goroutine; results come back only
// through Events.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan *core.EventPacket
	base   *core.BaseHandler

	settings *factories.SettingsStore
	catalog  *transcript.Catalog
	logDir   string
	now      func() time.Time
	rebuild  func(factories.SettingsConfig) factories.SessionComponents

	sink   *logSink
	logger *core.Logger

	tts *ttshandler.TTSHandler
	stt *stthandler.STTHandler

	mu         sync.Mutex
	llm        *llmhandler.LLMHandler
	service    llmhandler.LLMService
	store      *transcript.Store
	state      core.TurnState
	turnToken  *core.CancellationToken
	voiceToken *core.CancellationToken
	closed     bool

	wg sync.WaitGroup

	emitMu       sync.RWMutex
	eventsClosed bool
}

func NewRunner(settings *factories.SettingsStore, components factories.SessionComponents, config Config) (*Runner, error) {
	cfg := settings.Snapshot()
	if config.HistoryDir == "" {
		config.HistoryDir = cfg.HistoryDir
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 256
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = core.GetLogger()
	}

	catalog, err := transcript.NewCatalog(config.HistoryDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := &logSink{}
	logger := core.NewSessionLogger(config.Logger, sink)

	r := &Runner{
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan *core.EventPacket, config.EventBuffer),
		settings: settings,
		catalog:  catalog,
		logDir:   filepath.Join(config.HistoryDir, "logs"),
		now:      config.Now,
		rebuild:  config.Rebuild,
		sink:     sink,
		logger:   logger.With(map[string]interface{}{"component": "runner"}),
	}
	r.base = core.NewBaseHandler(ctx, "runner", r.events)

	if components.LLM == nil {
		cancel()
		return nil, errNoLLM
	}
	r.service = components.LLM
	if err := r.service.Init(ctx); err != nil {
		cancel()
		return nil, err
	}
	r.llm = llmhandler.NewLLMHandler(core.NewBaseHandler(ctx, "llm", r.events), r.service, llmhandler.LLMHandlerConfig{}, logger)
	r.tts = ttshandler.NewTTSHandler(core.NewBaseHandler(ctx, "tts", r.events),
		components.RemoteTTS, components.LocalTTS, components.Player, ttshandler.DefaultConfig(), logger)
	r.stt = stthandler.NewSTTHandler(core.NewBaseHandler(ctx, "stt", r.events),
		components.Recorder, components.Recognizer, stthandler.DefaultConfig(), logger)
	return r, nil
}

// Events delivers every notification produced by the runner and its workers. It is closed by Close.
func (r *Runner) Events() <-chan *core.EventPacket {
	return r.events
}

func (r *Runner) State() core.TurnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current returns the active session id, its transcript path and a copy of its turns.
func (r *Runner) Current() (string, string, []core.Turn) {
	r.mu.Lock()
	store := r.store
	r.mu.Unlock()
	if store == nil {
		return "", "", nil
	}
	return store.SessionID(), store.Path(), store.Turns()
}

// StartNewSession creates a new catalog file and makes it the active transcript.
func (r *Runner) StartNewSession() (transcript.SessionRef, error) {
	if err := r.checkIdle(); err != nil {
		return transcript.SessionRef{}, err
	}
	ref, err := r.catalog.Create(r.now())
	if err != nil {
		return transcript.SessionRef{}, err
	}

	r.mu.Lock()
	r.store = transcript.NewStore(ref.SessionID, ref.Path)
	r.mu.Unlock()

	r.openSessionLog(ref.SessionID, ref.Path)
	r.logger.Info("session started", "session", ref.SessionID, "path", ref.Path)
	r.emit(&session.SessionStartedEvent{SessionID: ref.SessionID, Path: ref.Path}, "")
	return ref, nil
}

// ListSessions returns the catalog, most recent first.
func (r *Runner) ListSessions() ([]transcript.SessionRef, error) {
	return r.catalog.List()
}

// ResumeSession rebinds the active transcript to the named catalog file and returns its turns.
// Surfaces replace their view with the turns carried by the SessionResumedEvent.
func (r *Runner) ResumeSession(name string) ([]core.Turn, error) {
	if err := r.checkIdle(); err != nil {
		return nil, err
	}
	ref, err := r.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	store := r.store
	if store == nil {
		store = transcript.NewStore(ref.SessionID, ref.Path)
	}
	r.mu.Unlock()

	if err := store.Rebind(ref.Path); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.store = store
	r.mu.Unlock()

	turns := store.Turns()
	r.openSessionLog(ref.SessionID, ref.Path)
	r.logger.Info("session resumed", "session", ref.SessionID, "turns", len(turns))
	r.emit(&session.SessionResumedEvent{SessionID: ref.SessionID, Path: ref.Path, Turns: turns}, "")
	return turns, nil
}

// Submit appends the user turn and starts streaming the reply. It returns once the worker
// is running; the reply arrives through Events.
func (r *Runner) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return transcript.ErrEmptyTurn
	}

	r.mu.Lock()
	switch {
	case r.closed:
		r.mu.Unlock()
		return ErrClosed
	case r.store == nil:
		r.mu.Unlock()
		return ErrNoSession
	case r.state != core.TurnIdle:
		r.mu.Unlock()
		return ErrTurnInFlight
	}
	store, handler := r.store, r.llm
	token := core.NewCancellationToken()
	r.turnToken = token
	r.state = core.TurnAwaitingReply
	r.wg.Add(1)
	r.mu.Unlock()

	cfg := r.settings.Snapshot()
	turnID := uuid.New().String()

	// the window is taken before the user turn lands so the utterance is sent once
	prompt := contexthandler.NewAssembler(cfg.ContextConfig()).Build(store, text)

	turn, err := store.Append(core.RoleUser, text)
	if err != nil {
		r.logger.Error("append user turn failed", "turn", turnID, "error", err)
		r.emitError(err, turnID)
	}
	r.emit(&session.TurnAppendedEvent{Turn: turn}, turnID)
	r.emit(&session.TurnStateChangedEvent{State: core.TurnAwaitingReply.String()}, turnID)

	go func() {
		defer r.wg.Done()
		r.runTurn(turnID, store, handler, prompt, token, cfg)
	}()
	return nil
}

func (r *Runner) runTurn(
	turnID string,
	store *transcript.Store,
	handler *llmhandler.LLMHandler,
	prompt []core.LLMMessage,
	token *core.CancellationToken,
	cfg factories.SettingsConfig,
) {
	ctx := core.ContextWithSessionLogger(r.ctx, r.logger)
	log := core.LoggerFromContext(ctx)

	result := handler.RunTurn(ctx, turnID, prompt, token, func(s core.TurnState) { r.setState(turnID, s) })
	reply := strings.TrimSpace(result.Reply)

	switch result.State {
	case core.TurnComplete, core.TurnCancelled:
		if reply != "" {
			turn, err := store.Append(core.RoleAssistant, reply)
			if err != nil {
				log.Error("append reply failed", "turn", turnID, "error", err)
				r.emitError(err, turnID)
			}
			r.emit(&session.TurnAppendedEvent{Turn: turn}, turnID)
		}
	case core.TurnFailed:
		log.Warn("reply failed", "turn", turnID, "error", result.Err)
		r.emitError(result.Err, turnID)
	}
	r.setState(turnID, result.State)

	if result.State == core.TurnComplete && reply != "" && !token.IsCancelled() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.tts.Speak(r.ctx, turnID, reply, cfg.SpeechConfig(), token)
		}()
	}
	r.setState(turnID, core.TurnIdle)
}

func (r *Runner) setState(turnID string, s core.TurnState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.emit(&session.TurnStateChangedEvent{State: s.String()}, turnID)
}

// Cancel stops the in-flight reply and any speech. Calling it again has no further effect.
func (r *Runner) Cancel() {
	r.mu.Lock()
	token, inFlight := r.turnToken, r.state != core.TurnIdle
	r.mu.Unlock()

	first := token != nil && !token.IsCancelled()
	if token != nil {
		token.Cancel()
	}
	r.tts.Stop()
	if first && inFlight {
		r.emit(&core.StatusEvent{Line: stoppedLine}, "")
	}
}

// StartVoice begins recording until StopVoice is called. The recognized text is submitted
// like a typed message.
func (r *Runner) StartVoice() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.voiceToken != nil {
		r.mu.Unlock()
		return ErrVoiceActive
	}
	token := core.NewCancellationToken()
	r.voiceToken = token
	r.wg.Add(1)
	r.mu.Unlock()

	captureID := uuid.New().String()
	go func() {
		defer r.wg.Done()
		text, err := r.stt.Capture(r.ctx, captureID, token)

		r.mu.Lock()
		if r.voiceToken == token {
			r.voiceToken = nil
		}
		r.mu.Unlock()

		if err != nil {
			r.emitError(err, captureID)
			return
		}
		if err := r.Submit(text); err != nil {
			r.emitError(err, captureID)
		}
	}()
	return nil
}

// StopVoice ends the current capture; recognition of what was recorded still runs.
func (r *Runner) StopVoice() {
	r.mu.Lock()
	token := r.voiceToken
	r.mu.Unlock()
	if token != nil {
		token.Cancel()
	}
}

func (r *Runner) VoiceActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.voiceToken != nil
}

// Export copies the active transcript file to path. A .json, .jsonl, .yaml or .md path is
// written in that format instead.
func (r *Runner) Export(path string) error {
	store, err := r.activeStore()
	if err != nil {
		return err
	}
	if exp, ok := export.ForPath(path); ok {
		err = r.exportAs(exp, store, path)
	} else {
		err = store.CopyTo(path)
	}
	if err != nil {
		return err
	}
	r.logger.Info("transcript exported", "path", path)
	r.emit(&session.ExportedEvent{Path: path}, "")
	return nil
}

func (r *Runner) exportAs(exp export.Exporter, store *transcript.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &core.PersistenceError{Op: "export", Path: path, Err: err}
	}
	doc := &export.Document{
		SessionID:  store.SessionID(),
		Source:     store.Path(),
		ExportedAt: r.now(),
		Turns:      store.Turns(),
	}
	if err := exp.Export(doc, f); err != nil {
		f.Close()
		return &core.PersistenceError{Op: "export", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &core.PersistenceError{Op: "export", Path: path, Err: err}
	}
	return nil
}

// Import overwrites the active transcript with the file at path and reloads it.
func (r *Runner) Import(path string) ([]core.Turn, error) {
	if err := r.checkIdle(); err != nil {
		return nil, err
	}
	store, err := r.activeStore()
	if err != nil {
		return nil, err
	}
	turns, err := store.ReplaceFrom(path)
	if err != nil {
		return nil, err
	}
	r.logger.Info("transcript imported", "from", path, "turns", len(turns))
	r.emit(&session.SessionResumedEvent{SessionID: store.SessionID(), Path: store.Path(), Turns: turns}, "")
	return turns, nil
}

func (r *Runner) Settings() factories.SettingsConfig {
	return r.settings.Snapshot()
}

// UpdateSettings applies fn, saves the file and swaps in providers built from the new values.
// The history directory is only read at startup.
func (r *Runner) UpdateSettings(fn func(*factories.SettingsConfig) error) (factories.SettingsConfig, error) {
	cfg, err := r.settings.Update(fn)
	if err != nil {
		return cfg, err
	}
	if r.rebuild == nil {
		return cfg, nil
	}

	components := r.rebuild(cfg)
	r.tts.SetRemote(components.RemoteTTS)
	r.stt.SetRecognizer(components.Recognizer)

	if components.LLM != nil {
		if err := components.LLM.Init(r.ctx); err != nil {
			return cfg, err
		}
		r.mu.Lock()
		prev := r.service
		r.service = components.LLM
		r.llm = llmhandler.NewLLMHandler(core.NewBaseHandler(r.ctx, "llm", r.events), components.LLM, llmhandler.LLMHandlerConfig{}, r.logger)
		inFlight := r.state != core.TurnIdle
		r.mu.Unlock()
		if prev != nil && !inFlight {
			prev.Cleanup()
		}
	}
	r.logger.Info("settings updated")
	return cfg, nil
}

// Close cancels all work, waits for the workers and closes Events.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	turnToken, voiceToken, service := r.turnToken, r.voiceToken, r.service
	r.mu.Unlock()

	if turnToken != nil {
		turnToken.Cancel()
	}
	if voiceToken != nil {
		voiceToken.Cancel()
	}
	r.tts.Stop()
	r.cancel()
	r.wg.Wait()

	var err error
	if service != nil {
		err = service.Cleanup()
	}
	r.sink.Close()

	r.emitMu.Lock()
	r.eventsClosed = true
	close(r.events)
	r.emitMu.Unlock()
	return err
}

// emit is safe to call after Close; the packet is dropped.
func (r *Runner) emit(event core.IEvent, turnID string) {
	r.emitMu.RLock()
	defer r.emitMu.RUnlock()
	if r.eventsClosed {
		return
	}
	r.base.Emit(event, turnID)
}

func (r *Runner) emitError(err error, turnID string) {
	r.emit(&core.StatusEvent{Line: core.StatusLine(err)}, turnID)
}

func (r *Runner) checkIdle() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state != core.TurnIdle {
		return ErrTurnInFlight
	}
	return nil
}

func (r *Runner) activeStore() (*transcript.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return nil, ErrNoSession
	}
	return r.store, nil
}

func (r *Runner) openSessionLog(sessionID, path string) {
	writer, err := core.NewSessionLogWriter(r.logDir, sessionID, path)
	if err != nil {
		r.logger.Warn("session log unavailable", "error", err)
		r.sink.swap(nil)
		r.emit(&core.WarningEvent{Error: err.Error()}, "")
		return
	}
	r.sink.swap(writer)
}
