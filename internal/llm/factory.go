package llm

import (
	"fmt"
	"os"
)

// DefaultModels maps provider types to the model used when none is configured.
var DefaultModels = map[string]string{
	"google":     "gemini-1.5-flash",
	"openai":     "gpt-4o-mini",
	"anthropic":  "claude-haiku-4-5-20251001",
	"ollama":     "llama3",
	"openrouter": "google/gemini-flash-1.5",
	"minimax":    "MiniMax-M1",
}

// VisionModels maps provider types to a model that accepts image input.
// Providers missing here use their default model for images.
var VisionModels = map[string]string{
	"google": "gemini-2.0-flash",
	"openai": "gpt-4o-mini",
	"ollama": "llava",
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "google", "openai", "anthropic", "ollama",
// "openrouter", "minimax". Missing credentials yield ErrNotConfigured.
func NewProvider(providerType string, model string) (Provider, error) {
	if model == "" {
		model = DefaultModels[providerType]
	}
	switch providerType {
	case "google":
		apiKey := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY: %w", ErrNotConfigured)
		}
		return NewGoogleProvider(apiKey, model), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY: %w", ErrNotConfigured)
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY: %w", ErrNotConfigured)
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY: %w", ErrNotConfigured)
		}
		return NewCompatibleProvider("openrouter", "https://openrouter.ai/api/v1", apiKey, model), nil

	case "minimax":
		apiKey := os.Getenv("MINIMAX_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("MINIMAX_API_KEY: %w", ErrNotConfigured)
		}
		p := NewCompatibleProvider("minimax", "https://api.minimax.io/v1", apiKey, model)
		p.maxTemperature = 1.0
		return p, nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
