package oracle

import (
	"fmt"
	"log/slog"

	"github.com/kalambet/elicit/internal/config"
)

// New builds the configured backend and wraps it in a retrying Client.
func New(cfg config.OracleConfig, logger *slog.Logger) (*Client, error) {
	var backend Backend
	switch cfg.Provider {
	case config.ProviderOpenAI:
		backend = NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.EmbedModel)
	case config.ProviderOllama:
		backend = NewOllama(cfg.BaseURL, cfg.Model, cfg.EmbedModel)
	case config.ProviderAnthropic:
		lc, err := NewAnthropic(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		backend = lc
	default:
		return nil, fmt.Errorf("unsupported oracle provider %q", cfg.Provider)
	}

	return NewClient(backend, Options{
		Attempts:  cfg.Attempts,
		BaseDelay: cfg.BaseDelay(),
		Timeout:   cfg.Timeout(),
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	}), nil
}

// Backend exposes the wrapped backend, e.g. for provider health checks.
func (c *Client) Backend() Backend {
	return c.backend
}
