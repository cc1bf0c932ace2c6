package factories

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sita/core"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 250 * time.Millisecond

// SettingsWatcher reloads the settings file after it is edited outside the app. Saves made
// through the store produce the same config and are ignored.
type SettingsWatcher struct {
	store    *SettingsStore
	keys     APIKeys
	onChange func(SettingsConfig)
	debounce time.Duration
	logger   *core.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
}

// NewSettingsWatcher watches the directory holding store's file, since saves replace the
// file by rename. debounce <= 0 uses 250ms.
func NewSettingsWatcher(
	store *SettingsStore,
	keys APIKeys,
	debounce time.Duration,
	onChange func(SettingsConfig),
	logger *core.Logger,
) (*SettingsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SettingsWatcher{
		store:    store,
		keys:     keys,
		onChange: onChange,
		debounce: debounce,
		logger:   logger.With(map[string]interface{}{"component": "settings_watcher"}),
		watcher:  watcher,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching for file changes
func (w *SettingsWatcher) Watch() error {
	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Close stops watching and releases resources
func (w *SettingsWatcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *SettingsWatcher) processEvents() {
	defer w.wg.Done()
	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watch error", "error", err)
		}
	}
}

func (w *SettingsWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *SettingsWatcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	path := w.store.Path()
	if _, err := os.Stat(path); err != nil {
		return
	}
	cfg, err := SettingsConfigFromFile(path)
	if err != nil {
		w.logger.Warn("ignoring unreadable settings file", "path", path, "error", err)
		return
	}
	cfg.InjectAPIKeys(w.keys)
	if cfg == w.store.Snapshot() {
		return
	}
	w.logger.Info("settings file changed on disk", "path", path)
	w.onChange(cfg)
}
