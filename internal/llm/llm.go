// Package llm wraps Genkit text generation with rate limiting and bounded
// retry. Every LLM-backed component (intent classification, reranking,
// media description) goes through a Client so the whole process shares one
// request budget.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// RetryConfig configures the retry behavior for LLM calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: This uses string matching because Genkit and LLM provider SDKs
// do not expose typed/sentinel errors for transient failures.
// Re-evaluate if Genkit adds structured error types in a future version.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Client generates text through Genkit with shared rate limiting and retry.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	g           *genkit.Genkit
	model       string
	rateLimiter *rate.Limiter
	retryConfig RetryConfig
	logger      *slog.Logger
}

// New creates a Client bound to the given provider-qualified model name
// (e.g. "googleai/gemini-2.5-flash").
func New(g *genkit.Genkit, model string, logger *slog.Logger) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		g:     g,
		model: model,
		// 10 req/s sustained, burst of 30 - stays under common API quotas.
		rateLimiter: rate.NewLimiter(10, 30),
		retryConfig: DefaultRetryConfig(),
		logger:      logger,
	}, nil
}

// GenerateText runs a single-prompt completion against the default model.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, c.model, ai.NewUserMessage(ai.NewTextPart(prompt)))
}

// GenerateMessages runs a completion with explicit messages (used for
// multimodal input). An empty model falls back to the client default.
func (c *Client) GenerateMessages(ctx context.Context, model string, msgs ...*ai.Message) (string, error) {
	if model == "" {
		model = c.model
	}
	return c.generate(ctx, model, msgs...)
}

// generate executes the request with exponential backoff retry.
// Each attempt is rate limited individually so retries cannot starve
// concurrent callers.
func (c *Client) generate(ctx context.Context, model string, msgs ...*ai.Message) (string, error) {
	var lastErr error
	delay := c.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := genkit.Generate(ctx, c.g,
			ai.WithModelName(model),
			ai.WithMessages(msgs...),
		)
		if err == nil {
			c.logger.Debug("generation succeeded",
				"model", model,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp.Text(), nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return "", fmt.Errorf("generate: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return "", fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		c.retryConfig.MaxRetries, time.Since(start), lastErr)
}
