package factories

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// DefaultSettingsFile is looked up in the working directory when no -config flag is given.
const DefaultSettingsFile = "sita_config.json"

// SettingsConfig is the provider configuration loaded from sita_config.json.
// The first block of keys matches the file written by earlier releases.
type SettingsConfig struct {
	APIKey            string `json:"api_key"`
	APIBase           string `json:"api_base"`
	ModelName         string `json:"model_name"`
	ElevenLabsAPIKey  string `json:"elevenlabs_api_key"`
	ElevenLabsVoiceID string `json:"elevenlabs_voice_id"`
	SafeMode          bool   `json:"safe_mode"`
	FloatingIndicator bool   `json:"floating_indicator"`
	VerboseLogs       bool   `json:"verbose_logs"`

	DeepgramAPIKey     string  `json:"deepgram_api_key"`
	SystemPrompt       string  `json:"system_prompt"`
	Temperature        float32 `json:"temperature" jsonschema:"minimum=0,maximum=2"`
	HistoryDir         string  `json:"history_dir"`
	SpeechModelID      string  `json:"speech_model_id"`
	SpeechOutputFormat string  `json:"speech_output_format"`
	Stability          float64 `json:"stability" jsonschema:"minimum=0,maximum=1"`
	SimilarityBoost    float64 `json:"similarity_boost" jsonschema:"minimum=0,maximum=1"`
	LocalVoice         string  `json:"local_voice"`
	LocalRate          int     `json:"local_rate" jsonschema:"minimum=1"`
	AudioPlayer        string  `json:"audio_player"`
	RecorderCommand    string  `json:"recorder_command"`
}

// DefaultSettingsConfig points at a local LM Studio server with speech left unconfigured.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		APIKey:             "lm-studio",
		APIBase:            "http://localhost:1234/v1",
		ModelName:          "nous-hermes-2-mistral-7b-dpo",
		ElevenLabsVoiceID:  "cgSgspJ2msm6clMCkdW9",
		FloatingIndicator:  true,
		Temperature:        0.7,
		HistoryDir:         "chat_history",
		SpeechModelID:      "eleven_multilingual_v2",
		SpeechOutputFormat: "mp3_44100_128",
		Stability:          0.4,
		SimilarityBoost:    0.85,
		LocalRate:          165,
	}
}

// SettingsConfigFromJSON parses data on top of DefaultSettingsConfig, so any fields absent
// from the JSON retain their defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
// A missing file is not an error.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettingsConfig(), nil
	}
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// APIKeys holds credentials read from the environment.
type APIKeys struct {
	OpenAI        string // OPENAI_API_KEY
	OpenAIBaseURL string // OPENAI_BASE_URL
	ElevenLabs    string // ELEVENLABS_API_KEY
	Deepgram      string // DEEPGRAM_API_KEY
}

// APIKeysFromEnv reads the provider credentials from the process environment.
func APIKeysFromEnv() APIKeys {
	return APIKeys{
		OpenAI:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		ElevenLabs:    os.Getenv("ELEVENLABS_API_KEY"),
		Deepgram:      os.Getenv("DEEPGRAM_API_KEY"),
	}
}

// InjectAPIKeys fills credentials that the file left empty. Values from the file always win.
// The completion key and base only replace the LM Studio defaults, never user values.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	def := DefaultSettingsConfig()
	if keys.OpenAI != "" && (c.APIKey == "" || c.APIKey == def.APIKey) {
		c.APIKey = keys.OpenAI
	}
	if keys.OpenAIBaseURL != "" && (c.APIBase == "" || c.APIBase == def.APIBase) {
		c.APIBase = keys.OpenAIBaseURL
	}
	if c.ElevenLabsAPIKey == "" {
		c.ElevenLabsAPIKey = keys.ElevenLabs
	}
	if c.DeepgramAPIKey == "" {
		c.DeepgramAPIKey = keys.Deepgram
	}
}

// Set assigns one setting by its JSON key, parsing value for the field's type.
func (c *SettingsConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case "api_key":
		c.APIKey = value
	case "api_base":
		c.APIBase = strings.TrimRight(value, "/")
	case "model_name":
		c.ModelName = value
	case "elevenlabs_api_key":
		c.ElevenLabsAPIKey = value
	case "elevenlabs_voice_id":
		c.ElevenLabsVoiceID = value
	case "safe_mode":
		c.SafeMode, err = strconv.ParseBool(value)
	case "floating_indicator":
		c.FloatingIndicator, err = strconv.ParseBool(value)
	case "verbose_logs":
		c.VerboseLogs, err = strconv.ParseBool(value)
	case "deepgram_api_key":
		c.DeepgramAPIKey = value
	case "system_prompt":
		c.SystemPrompt = value
	case "temperature":
		var f float64
		f, err = strconv.ParseFloat(value, 32)
		if err == nil && (f < 0 || f > 2) {
			err = errors.New("must be between 0 and 2")
		}
		c.Temperature = float32(f)
	case "history_dir":
		c.HistoryDir = value
	case "speech_model_id":
		c.SpeechModelID = value
	case "speech_output_format":
		c.SpeechOutputFormat = value
	case "stability":
		c.Stability, err = parseUnit(value)
	case "similarity_boost":
		c.SimilarityBoost, err = parseUnit(value)
	case "local_voice":
		c.LocalVoice = value
	case "local_rate":
		c.LocalRate, err = strconv.Atoi(value)
	case "audio_player":
		c.AudioPlayer = value
	case "recorder_command":
		c.RecorderCommand = value
	default:
		return fmt.Errorf("settings: unknown key %q", key)
	}
	if err != nil {
		return fmt.Errorf("settings: %s: %w", key, err)
	}
	return nil
}

func parseUnit(value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, errors.New("must be between 0 and 1")
	}
	return f, nil
}

// Fields lists every setting as key/value pairs, secrets masked, sorted by key.
func (c SettingsConfig) Fields() [][2]string {
	data, _ := sonic.Marshal(c)
	var m map[string]interface{}
	_ = sonic.Unmarshal(data, &m)

	out := make([][2]string, 0, len(m))
	for k, v := range m {
		s := fmt.Sprint(v)
		if strings.HasSuffix(k, "api_key") {
			s = maskSecret(s)
		}
		out = append(out, [2]string{k, s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// SettingsStore serializes writes of the settings file against readers.
// Components take a Snapshot; nothing holds a pointer into the live config.
type SettingsStore struct {
	mu   sync.RWMutex
	path string
	cfg  SettingsConfig
}

func NewSettingsStore(path string, cfg SettingsConfig) *SettingsStore {
	return &SettingsStore{path: path, cfg: cfg}
}

// LoadSettingsStore reads path (if present) and applies the environment keys.
func LoadSettingsStore(path string, keys APIKeys) (*SettingsStore, error) {
	cfg, err := SettingsConfigFromFile(path)
	cfg.InjectAPIKeys(keys)
	return NewSettingsStore(path, cfg), err
}

func (s *SettingsStore) Path() string {
	return s.path
}

func (s *SettingsStore) Snapshot() SettingsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to a copy and saves it. The live config only changes when the save succeeds.
func (s *SettingsStore) Update(fn func(*SettingsConfig) error) (SettingsConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	if err := fn(&next); err != nil {
		return s.cfg, err
	}
	if err := s.saveLocked(next); err != nil {
		return s.cfg, err
	}
	s.cfg = next
	return next, nil
}

// Save writes the current config to disk.
func (s *SettingsStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(s.cfg)
}

func (s *SettingsStore) saveLocked(cfg SettingsConfig) error {
	if s.path == "" {
		return nil
	}
	data, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sita_config-*.json")
	if err != nil {
		return fmt.Errorf("settings: save %q: %w", s.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("settings: save %q: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("settings: save %q: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("settings: save %q: %w", s.path, err)
	}
	return nil
}
