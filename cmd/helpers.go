package cmd

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/assistant"
	"github.com/ziadkadry99/livepen/internal/config"
	"github.com/ziadkadry99/livepen/internal/db"
	"github.com/ziadkadry99/livepen/internal/llm"
	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/metrics"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `livepen init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger; --verbose forces debug.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	if verbose {
		lc.Level = "debug"
		lc.Development = true
	}
	return logging.New(lc)
}

// openDatabase opens the pen database under the data dir.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// createAssistantFromConfig builds the AI collaborator. A missing API key is
// not fatal: the assistant answers every request with the not-configured
// message instead.
func createAssistantFromConfig(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*assistant.Assistant, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if errors.Is(err, llm.ErrNotConfigured) {
		log.Warn("AI assistant disabled", zap.Error(err))
		provider = nil
	} else if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider != nil && cfg.AI.RequestsPerMinute > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.AI.RequestsPerMinute)
	}
	return assistant.New(provider, assistant.Options{
		Logger:      log,
		Metrics:     m,
		VisionModel: llm.VisionModels[string(cfg.Provider)],
	}), nil
}
