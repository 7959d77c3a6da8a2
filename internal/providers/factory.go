package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey marks a real provider configured without credentials.
// Surfaced before any turn starts; the caller decides how to present it.
var ErrMissingAPIKey = errors.New("missing API key")

// Options carries the effective provider settings resolved by configuration.
type Options struct {
	Provider          string
	Model             string
	BaseURL           string
	OpenAIKey         string
	AnthropicKey      string
	ModelTimeoutMs    int
	ModelRetryCount   int
	RequestsPerMinute int
}

// New builds a provider from resolved options. The openai provider accepts a
// missing key when a custom base URL is set, since local OpenAI-compatible
// gateways typically run unauthenticated.
func New(opts Options) (Provider, error) {
	timeout := time.Duration(opts.ModelTimeoutMs) * time.Millisecond
	retry := DefaultRetryConfig()
	if opts.ModelRetryCount > 0 {
		retry.MaxRetries = opts.ModelRetryCount
	}

	switch opts.Provider {
	case "mock":
		return NewMockProvider(), nil

	case "openai":
		if opts.OpenAIKey == "" && opts.BaseURL == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrMissingAPIKey)
		}
		return NewOpenAIProvider(opts.OpenAIKey, opts.BaseURL, opts.Model).
			WithAttemptTimeout(timeout).
			WithRetryConfig(retry).
			WithRateLimit(opts.RequestsPerMinute), nil

	case "anthropic":
		if opts.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY)", ErrMissingAPIKey)
		}
		return NewAnthropicProvider(opts.AnthropicKey,
			WithAnthropicModel(opts.Model),
			WithAnthropicBaseURL(opts.BaseURL),
			WithAnthropicTimeout(timeout),
			WithAnthropicRetryConfig(retry),
			WithAnthropicRateLimit(opts.RequestsPerMinute),
		), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Provider)
	}
}
