package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/config"
)

// NewGenerator builds the provider client named by cfg. It returns a nil
// Generator for config.LLMProviderNone.
func NewGenerator(cfg config.LLMConfig, logger *zap.Logger) (Generator, error) {
	clientCfg := ClientConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model}
	switch cfg.Provider {
	case config.LLMProviderNone, "":
		return nil, nil
	case config.LLMProviderOpenAI:
		c, err := NewOpenAIClient(clientCfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.LLMProviderAnthropic:
		c, err := NewAnthropicClient(clientCfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// New builds a Resilient generator from configuration. When the provider
// cannot be constructed the error is returned together with an offline
// generator, so callers can log it and carry on.
func New(cfg config.LLMConfig, offline bool, logger *zap.Logger) (*Resilient, error) {
	opts := Options{
		FallbackModels: cfg.FallbackModels,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		RateLimit:      cfg.RateLimit,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		Offline:        offline,
	}

	gen, err := NewGenerator(cfg, logger)
	if err != nil {
		return NewResilient(nil, opts, logger), fmt.Errorf("llm provider %s: %w", cfg.Provider, err)
	}
	return NewResilient(gen, opts, logger), nil
}
