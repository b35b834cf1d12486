// Package llm adapts text-generation providers behind a small interface and
// wraps them with timeouts, retries, model fallback and an offline mode.
package llm

import "context"

// Request is one single-turn generation request.
type Request struct {
	System string
	Prompt string
	// Model overrides the client's default model when set.
	Model       string
	MaxTokens   int
	Temperature float64
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	DefaultModel() string
}

// ClientConfig configures a provider client.
type ClientConfig struct {
	APIKey  string
	BaseURL string // empty uses the provider's public endpoint
	Model   string
}
