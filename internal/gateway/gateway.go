// Package gateway provides the model gateway: a chat-completion capability
// used by the model path of the classifiers.
//
// The gateway is a black-box dependency that may be absent or fail at any
// call. Callers must treat "returned but unparsable" identically to "call
// failed": fall back to the deterministic path, do not retry.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnavailable indicates the gateway is not configured or not reachable.
var ErrUnavailable = errors.New("model gateway unavailable")

// ChatModel is the chat-completion capability the classifiers consume.
type ChatModel interface {
	// Complete sends a bounded prompt and returns the raw model response.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures the gateway client.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the chat model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the endpoint. Optional for local servers.
	APIKey string `koanf:"api_key"`

	// Timeout bounds each call. The gateway boundary is where unbounded
	// blocking can occur, so the deadline lives here rather than in the
	// pipeline (default: 30s).
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond caps the call rate to protect the external API
	// (default: 2).
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// MaxTokens bounds the response length (default: 1024).
	MaxTokens int `koanf:"max_tokens"`

	// Temperature controls sampling. Classification wants determinism
	// (default: 0).
	Temperature float64 `koanf:"temperature"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		MaxTokens:         1024,
	}
}

// Client is a langchaingo-backed ChatModel with a per-call deadline and a
// rate limiter on outbound requests.
type Client struct {
	llm     llms.Model
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a gateway client for an OpenAI-compatible endpoint.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrUnavailable)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for unauthenticated local servers.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return &Client{
		llm:     llm,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}, nil
}

// Complete sends the prompt and returns the raw completion. Each call is
// bounded by the configured timeout and subject to the rate limiter.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// JSON shape is requested in the prompt, not enforced by the API; the
	// decode layer treats anything unparsable as a failed call.
	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithMaxTokens(c.config.MaxTokens),
		llms.WithTemperature(c.config.Temperature),
	)
	if err != nil {
		c.logger.Warn("model gateway call failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.logger.Debug("model gateway call",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_bytes", len(out)),
	)
	return out, nil
}
