package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"profilechat/internal/sanitize"
)

const (
	DefaultPersona = "Sei l'assistente del portfolio personale. Rispondi in italiano, in modo breve e cordiale, " +
		"parlando del profilo in terza persona. Non inventare dettagli."
	DefaultFallbackModel = "Qwen2.5-0.5B-Instruct-q4f16_1-MLC"
	// DefaultRemoteLibrary stands for an OpenAI-compatible MLC runtime serving
	// DefaultFallbackModel; deployments replace it with their own host.
	DefaultRemoteLibrary = "https://mlc.example.com/v1"

	envRemoteEndpoint = "PROFILECHAT_REMOTE_ENDPOINT"
	envAllowRemote    = "PROFILECHAT_ALLOW_REMOTE"
)

// SourceConfig locates the profile document (file path or http(s) URL).
type SourceConfig struct {
	Location    string `yaml:"location"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CacheConfig selects the local cache implementation.
type CacheConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// IndexConfig configures paragraph chunking.
type IndexConfig struct {
	MinParagraphChars int `yaml:"min_paragraph_chars"`
}

// PersonaConfig holds the system persona instruction.
type PersonaConfig struct {
	Prompt string `yaml:"prompt"`
}

// LibraryConfig is one runtime library candidate.
type LibraryConfig struct {
	Name      string `yaml:"name"`
	Location  string `yaml:"location"`
	ProbePath string `yaml:"probe_path"`
	Remote    bool   `yaml:"remote"`
}

// RemoteModelConfig describes an optional custom model hosted remotely.
type RemoteModelConfig struct {
	ID        string `yaml:"id"`
	Location  string `yaml:"location"`
	KernelURL string `yaml:"kernel_url"`
}

// EngineConfig configures engine resolution and sampling.
type EngineConfig struct {
	Origin      string `yaml:"origin"`
	AllowRemote bool   `yaml:"allow_remote"`
	// NoAccelerator marks the host as unable to run local inference.
	NoAccelerator    bool               `yaml:"no_accelerator"`
	Libraries        []LibraryConfig    `yaml:"libraries"`
	ModelRoot        string             `yaml:"model_root"`
	KernelRoot       string             `yaml:"kernel_root"`
	Models           []string           `yaml:"models"`
	RemoteModel      *RemoteModelConfig `yaml:"remote_model,omitempty"`
	FallbackModel    string             `yaml:"fallback_model"`
	PlaceholderBytes int64              `yaml:"placeholder_bytes"`
	APIKeyEnv        string             `yaml:"api_key_env"`
	TimeoutSecs      int                `yaml:"timeout_secs"`
	MaxRetries       int                `yaml:"max_retries"`
	Temperature      float32            `yaml:"temperature"`
	TopP             float32            `yaml:"top_p"`
	MaxTokens        int                `yaml:"max_tokens"`
}

// RemoteConfig configures the optional remote chat_stream server.
type RemoteConfig struct {
	Endpoint         string `yaml:"endpoint"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
	FailureThreshold uint32 `yaml:"failure_threshold"`
	OpenTimeoutSecs  int    `yaml:"open_timeout_secs"`
}

// SanitizerConfig overrides the answer cleaning rules. No rules means the built-in table.
type SanitizerConfig struct {
	MinChars int                 `yaml:"min_chars"`
	Rules    []sanitize.RuleSpec `yaml:"rules,omitempty"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	ModelID string `yaml:"model_id"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Source    SourceConfig    `yaml:"source"`
	Cache     CacheConfig     `yaml:"cache"`
	Index     IndexConfig     `yaml:"index"`
	Persona   PersonaConfig   `yaml:"persona"`
	Engine    EngineConfig    `yaml:"engine"`
	Remote    RemoteConfig    `yaml:"remote"`
	Sanitizer SanitizerConfig `yaml:"sanitizer"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	// keys absent from the file keep their defaults, explicit zeros are kept
	cfg := baseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries ./profilechat.yaml first, then ~/.config/profilechat/config.yaml.
// If neither exists, it writes defaults to ~/.config/profilechat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "profilechat.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ConfigDir returns ~/.config/profilechat.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "profilechat"), nil
}

func defaultUserConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := baseConfig()
	applyConfigDefaults(cfg)
	return cfg
}

// baseConfig holds the defaults a config file may override, including with zero values.
func baseConfig() *AppConfig {
	return &AppConfig{
		Source: SourceConfig{Location: "profile.txt", TimeoutSecs: 10},
		Cache:  CacheConfig{Type: "sqlite"},
		Index:  IndexConfig{MinParagraphChars: 30},
		Engine: EngineConfig{
			Libraries: []LibraryConfig{
				{Name: "bundle", Location: "http://127.0.0.1:8080/v1", ProbePath: "models"},
				{Name: "script", Location: "http://127.0.0.1:11434/v1", ProbePath: "models"},
				// the remote runtime must serve the MLC model ids, fallback included
				{Name: "cdn", Location: DefaultRemoteLibrary, ProbePath: "models", Remote: true},
			},
			ModelRoot:  "models",
			KernelRoot: "libs",
			Models: []string{
				"Qwen2.5-0.5B-Instruct-q4f16_1-MLC",
				"Llama-3.2-1B-Instruct-q4f16_1-MLC",
				"SmolLM2-360M-Instruct-q4f16_1-MLC",
			},
			MaxRetries:  2,
			Temperature: 0.2,
			TopP:        0.9,
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Source.TimeoutSecs == 0 {
		cfg.Source.TimeoutSecs = 10
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = "sqlite"
	}
	if cfg.Cache.Type == "sqlite" && cfg.Cache.Path == "" {
		if dir, err := ConfigDir(); err == nil {
			cfg.Cache.Path = filepath.Join(dir, "cache.db")
		}
	}
	if cfg.Index.MinParagraphChars == 0 {
		cfg.Index.MinParagraphChars = 30
	}
	if strings.TrimSpace(cfg.Persona.Prompt) == "" {
		cfg.Persona.Prompt = DefaultPersona
	}
	e := &cfg.Engine
	if e.FallbackModel == "" {
		e.FallbackModel = DefaultFallbackModel
	}
	if e.PlaceholderBytes == 0 {
		e.PlaceholderBytes = 1024
	}
	if e.APIKeyEnv == "" {
		e.APIKeyEnv = "OPENAI_API_KEY"
	}
	if e.TimeoutSecs == 0 {
		e.TimeoutSecs = 30
	}
	if e.MaxTokens == 0 {
		e.MaxTokens = 256
	}
	if cfg.Remote.TimeoutSecs == 0 {
		cfg.Remote.TimeoutSecs = 10
	}
	if cfg.Remote.FailureThreshold == 0 {
		cfg.Remote.FailureThreshold = 3
	}
	if cfg.Remote.OpenTimeoutSecs == 0 {
		cfg.Remote.OpenTimeoutSecs = 30
	}
	if cfg.Sanitizer.MinChars == 0 {
		cfg.Sanitizer.MinChars = 40
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(envRemoteEndpoint)); v != "" {
		cfg.Remote.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(envAllowRemote)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engine.AllowRemote = b
		}
	}
}
