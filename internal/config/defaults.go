package config

import (
	"time"

	"github.com/ziadkadry99/livepen/internal/watch"
)

// DefaultPort is the HTTP port used when none is configured.
const DefaultPort = 8080

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGoogle,
		Model:    "gemini-1.5-flash",
		DataDir:  ".livepen",
		LogLevel: "info",
		Server: ServerConfig{
			Port: DefaultPort,
		},
		Preview: PreviewConfig{
			BlobGrace:       5 * time.Second,
			DefaultMode:     "standard",
			HeadlessTimeout: 2 * time.Second,
		},
		AI: AIConfig{
			RequestsPerMinute: 15,
		},
		Watch: watch.DefaultPatterns(),
	}
}
