package config

import (
	"time"

	"github.com/ziadkadry99/livepen/internal/watch"
)

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderGoogle     ProviderType = "google"
	ProviderOpenAI     ProviderType = "openai"
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderMiniMax    ProviderType = "minimax"
)

// Config is the top-level livepen configuration, corresponding to .livepen.yml.
type Config struct {
	Provider ProviderType   `yaml:"provider" koanf:"provider"`
	Model    string         `yaml:"model" koanf:"model"`
	DataDir  string         `yaml:"data_dir" koanf:"data_dir"`
	LogLevel string         `yaml:"log_level" koanf:"log_level"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Preview  PreviewConfig  `yaml:"preview" koanf:"preview"`
	AI       AIConfig       `yaml:"ai" koanf:"ai"`
	Watch    watch.Patterns `yaml:"watch" koanf:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// PreviewConfig holds render settings.
type PreviewConfig struct {
	// BlobGrace is how long an open-in-new-context document stays served.
	BlobGrace       time.Duration `yaml:"blob_grace" koanf:"blob_grace"`
	DefaultMode     string        `yaml:"default_mode" koanf:"default_mode"`
	HeadlessTimeout time.Duration `yaml:"headless_timeout" koanf:"headless_timeout"`
}

// AIConfig holds AI collaborator settings.
type AIConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}
