// Package providers implements the model gateway for Gemini and
// OpenAI-compatible endpoints.
package providers

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/toolchat/toolchat/config"
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

// New builds the provider named by cfg.Provider. The returned closer
// releases the underlying client and is never nil.
func New(ctx context.Context, cfg config.LLMConfig, logger zerolog.Logger) (ports.Provider, io.Closer, error) {
	switch cfg.Provider {
	case GeminiProviderName:
		p, err := NewGeminiProvider(ctx, cfg.APIKey, cfg.BaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case OpenAIProviderName:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, logger), nopCloser{}, nil
	default:
		return nil, nil, &config.ConfigurationError{Key: "llm.provider", Reason: "unsupported provider " + cfg.Provider}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
