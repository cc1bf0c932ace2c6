package factories

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T) (*SettingsStore, chan SettingsConfig) {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultSettingsFile)
	store := NewSettingsStore(path, DefaultSettingsConfig())
	require.NoError(t, store.Save())

	changes := make(chan SettingsConfig, 4)
	w, err := NewSettingsWatcher(store, APIKeys{}, 20*time.Millisecond, func(c SettingsConfig) {
		changes <- c
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	t.Cleanup(func() { w.Close() })
	return store, changes
}

func TestSettingsWatcherReportsExternalEdit(t *testing.T) {
	store, changes := startWatcher(t)

	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"model_name": "llama-3-8b"}`), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, "llama-3-8b", cfg.ModelName)
		assert.Equal(t, DefaultSettingsConfig().APIBase, cfg.APIBase)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after external edit")
	}
}

func TestSettingsWatcherIgnoresOwnSaves(t *testing.T) {
	store, changes := startWatcher(t)

	_, err := store.Update(func(c *SettingsConfig) error { return c.Set("safe_mode", "true") })
	require.NoError(t, err)

	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSettingsWatcherIgnoresGarbage(t *testing.T) {
	store, changes := startWatcher(t)

	require.NoError(t, os.WriteFile(store.Path(), []byte(`{not json`), 0o644))

	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}
