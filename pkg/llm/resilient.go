package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/pkg/retry"
)

// Options tune a Resilient generator.
type Options struct {
	FallbackModels []string
	Timeout        time.Duration // per attempt; 0 means no timeout
	MaxRetries     int
	RetryBackoff   time.Duration
	// RateLimit caps calls per second across all callers; 0 disables it.
	RateLimit   float64
	MaxTokens   int
	Temperature float64
	Offline     bool
}

// Reply is the outcome of Resilient.Generate.
type Reply struct {
	Text string `json:"text"`
	// Model is the model that answered, empty when the fallback was used.
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback"`
	// Err describes why the fallback was used, if a provider failed.
	Err string `json:"error,omitempty"`
}

// Resilient never fails: it tries the default model and then each fallback
// model with retries, and returns the caller's deterministic text when every
// attempt fails or the generator is offline.
type Resilient struct {
	gen     Generator
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewResilient wraps gen. A nil gen behaves as permanently offline.
func NewResilient(gen Generator, opts Options, logger *zap.Logger) *Resilient {
	r := &Resilient{
		gen:    gen,
		opts:   opts,
		logger: logging.OrNop(logger).Named("llm"),
	}
	if opts.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return r
}

// Offline reports whether Generate skips external calls.
func (r *Resilient) Offline() bool {
	return r.gen == nil || r.opts.Offline
}

// Generate asks the provider to answer prompt. fallback is called for the
// reply text when no provider answer is available.
func (r *Resilient) Generate(ctx context.Context, system, prompt string, fallback func() string) Reply {
	if r.Offline() {
		return Reply{Text: fallback(), Fallback: true}
	}

	var lastErr error
	for _, model := range r.models() {
		text, err := r.try(ctx, model, system, prompt)
		if err == nil {
			return Reply{Text: text, Model: model}
		}
		lastErr = err
		r.logger.Warn("model failed", zap.String("model", model), zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no model configured")
	}
	r.logger.Warn("all models failed, using deterministic fallback", zap.Error(lastErr))
	return Reply{Text: fallback(), Fallback: true, Err: lastErr.Error()}
}

func (r *Resilient) models() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range append([]string{r.gen.DefaultModel()}, r.opts.FallbackModels...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func (r *Resilient) try(ctx context.Context, model, system, prompt string) (string, error) {
	cfg := &retry.Config{
		MaxRetries:   r.opts.MaxRetries,
		InitialDelay: r.opts.RetryBackoff,
		MaxDelay:     8 * r.opts.RetryBackoff,
		Multiplier:   2,
		JitterFactor: 0.1,
		OnRetry: func(attempt int, err error) {
			r.logger.Info("retrying model",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Error(err))
		},
	}

	return retry.Do(ctx, cfg, func(ctx context.Context) (string, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		callCtx := ctx
		if r.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
		}

		text, err := r.gen.Generate(callCtx, Request{
			System:      system,
			Prompt:      prompt,
			Model:       model,
			MaxTokens:   r.opts.MaxTokens,
			Temperature: r.opts.Temperature,
		})
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &Error{Type: ErrorTypeEndpoint, Message: "request timeout", Retryable: true, Model: model, Cause: err}
		}
		return text, err
	})
}
