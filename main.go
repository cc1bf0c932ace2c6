package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"sita/controlplane"
	"sita/core"
	"sita/factories"
	"sita/runner"
	"sita/ui/chat"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	var (
		connectURL string
		configPath string
		verbose    bool
		schema     bool
	)
	flag.StringVar(&connectURL, "connect", "", "WebSocket URL of a remote UI control plane (e.g. ws://ui:8888/ws/agent)")
	flag.StringVar(&configPath, "config", getEnv("SITA_CONFIG", factories.DefaultSettingsFile), "path of the settings file")
	flag.BoolVar(&verbose, "verbose", false, "write DEBUG lines to the log")
	flag.BoolVar(&schema, "print-schema", false, "print the JSON schema of the settings file and exit")
	flag.Parse()

	if schema {
		data, err := factories.SettingsSchema()
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(data))
		return
	}

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().Debug("no .env.local file loaded", "error", err)
	}

	store, err := loadSettings(configPath)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := "INFO"
	if verbose || store.Snapshot().VerboseLogs {
		level = "DEBUG"
	}

	if connectURL != "" {
		err = runConnectedMode(ctx, store, connectURL, level)
	} else {
		err = runTerminalMode(store, level)
	}
	if err != nil {
		fatal(err)
	}
}

// loadSettings reads the settings file. A spawner may instead pass the whole file as
// SETTINGS_JSON_B64; it then seeds the file at path.
func loadSettings(path string) (*factories.SettingsStore, error) {
	keys := factories.APIKeysFromEnv()
	b64 := os.Getenv("SETTINGS_JSON_B64")
	if b64 == "" {
		return factories.LoadSettingsStore(path, keys)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode SETTINGS_JSON_B64: %w", err)
	}
	cfg, err := factories.SettingsConfigFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse SETTINGS_JSON_B64: %w", err)
	}
	cfg.InjectAPIKeys(keys)
	store := factories.NewSettingsStore(path, cfg)
	if err := store.Save(); err != nil {
		core.GetLogger().Warn("failed to write settings seeded from environment", "path", path, "error", err)
	}
	return store, nil
}

func newRunner(store *factories.SettingsStore, logger *core.Logger) (*runner.Runner, error) {
	rebuild := func(cfg factories.SettingsConfig) factories.SessionComponents {
		return factories.BuildSessionComponents(cfg, logger)
	}
	r, err := runner.NewRunner(store, rebuild(store.Snapshot()), runner.Config{
		Logger:  logger,
		Rebuild: rebuild,
	})
	if err != nil {
		return nil, err
	}
	if _, err := r.StartNewSession(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// watchSettings applies edits made to the settings file while the app runs. It returns a
// stop function; a watcher that cannot start only costs hot reload.
func watchSettings(store *factories.SettingsStore, r *runner.Runner, logger *core.Logger) func() {
	w, err := factories.NewSettingsWatcher(store, factories.APIKeysFromEnv(), 0, func(cfg factories.SettingsConfig) {
		if _, err := r.UpdateSettings(func(c *factories.SettingsConfig) error {
			*c = cfg
			return nil
		}); err != nil {
			logger.Warn("failed to apply edited settings", "error", err)
		}
	}, logger)
	if err == nil {
		err = w.Watch()
	}
	if err != nil {
		logger.Warn("settings hot reload disabled", "error", err)
		return func() {}
	}
	return func() { w.Close() }
}

// runTerminalMode runs the chat surface in this terminal. Log lines go to a file under the
// history directory so they never draw over the UI.
func runTerminalMode(store *factories.SettingsStore, level string) error {
	historyDir := store.Snapshot().HistoryDir
	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(historyDir, "sita.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger := core.NewWriterLogger(logFile, level)
	core.SetLogger(*logger)

	r, err := newRunner(store, logger)
	if err != nil {
		return err
	}
	defer r.Close()
	defer watchSettings(store, r, logger)()

	program := tea.NewProgram(chat.New(r, r.Events()), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

// runConnectedMode drives the runner from a remote UI. The agent exits when the UI asks it
// to, when the connection drops, or on a signal.
func runConnectedMode(ctx context.Context, store *factories.SettingsStore, connectURL, level string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	base := core.NewWriterLogger(os.Stdout, level)
	core.SetLogger(*base)

	agentID := os.Getenv("AGENT_ID")
	if agentID == "" {
		agentID, _ = os.Hostname()
	}
	if agentID == "" {
		agentID = uuid.New().String()
	}
	hostname, _ := os.Hostname()

	client := controlplane.NewClient(controlplane.ClientConfig{
		ConnectURL: connectURL,
		AgentID:    agentID,
		Version:    version,
		Metadata:   map[string]string{"hostname": hostname},
		Logger:     base,
	}, nil)
	client.OnShutdown = func(reason string) {
		base.Info("shutdown requested by control plane", "reason", reason)
		cancel()
	}

	var r *runner.Runner
	currentSession := func() string {
		if r == nil {
			return ""
		}
		id, _, _ := r.Current()
		return id
	}
	logger := core.NewSessionLogger(base, controlplane.NewWSLogWriter(client, currentSession))

	r, err := newRunner(store, logger)
	if err != nil {
		return err
	}
	defer r.Close()
	defer watchSettings(store, r, base)()
	client.Bind(r)

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()
	go client.Forward(r.Events())

	select {
	case <-ctx.Done():
	case <-client.Done():
		base.Info("control plane connection lost, shutting down")
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("sita:"), err)
	os.Exit(1)
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
