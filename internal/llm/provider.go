package llm

import (
	"context"
	"errors"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

var (
	// ErrNotConfigured is returned when a provider's credentials are missing.
	ErrNotConfigured = errors.New("API key is not configured")
	// ErrImagesUnsupported is returned by providers without multimodal input.
	ErrImagesUnsupported = errors.New("provider does not accept image input")
)
