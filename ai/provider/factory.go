package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/ai/gemini"
	"github.com/teranos/samarth/ai/openrouter"
	"github.com/teranos/samarth/ai/tracker"
	"github.com/teranos/samarth/am"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
)

// AIClient is the single-turn chat contract every provider satisfies
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// ClientConfig holds what every client shares regardless of provider
type ClientConfig struct {
	Tracker *tracker.UsageTracker // nil = usage is not recorded
	Logger  *zap.SugaredLogger
}

// NewAIClient creates a client for the provider named in cfg.Model.Provider
func NewAIClient(cfg *am.Config, clientCfg ClientConfig) (AIClient, error) {
	p, err := ParseProvider(cfg.Model.Provider)
	if err != nil {
		return nil, err
	}
	return NewAIClientWithProvider(cfg, p, clientCfg), nil
}

// NewAIClientWithProvider creates an AI client for a specific provider.
// Use ProviderAuto to let the factory decide based on configuration.
func NewAIClientWithProvider(cfg *am.Config, provider Provider, clientCfg ClientConfig) AIClient {
	if provider == ProviderAuto || provider == "" {
		provider = DetermineProvider(cfg, "")
	}
	if clientCfg.Logger != nil {
		clientCfg.Logger.Debugw("Model provider selected", logger.FieldProvider, string(provider))
	}

	switch provider {
	case ProviderLocal:
		return newLocalClient(cfg, clientCfg)
	case ProviderGemini:
		return newGeminiClient(cfg, clientCfg)
	default:
		return newOpenRouterClient(cfg, clientCfg)
	}
}

// DetermineProvider resolves the provider to use. An explicit, parseable
// name wins; otherwise local (if enabled with a base URL), then Gemini (if
// keyed), then OpenRouter.
func DetermineProvider(cfg *am.Config, explicit string) Provider {
	if p, err := ParseProvider(explicit); err == nil && p != ProviderAuto {
		return p
	}

	pc := ProviderConfig{
		ProviderPriority: DefaultPriority,
		Providers: map[Provider]bool{
			ProviderLocal:      cfg.LocalInference.Enabled && cfg.LocalInference.BaseURL != "",
			ProviderGemini:     cfg.Gemini.APIKey != "",
			ProviderOpenRouter: cfg.OpenRouter.APIKey != "",
		},
	}
	if p, err := ParseProvider(cfg.Model.Provider); err == nil && p != ProviderAuto {
		pc.DefaultProvider = p
	}
	return pc.GetActiveProvider()
}

func newLocalClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return NewLocalProvider(&cfg.LocalInference, LocalOptions{
		Tracker: clientCfg.Tracker,
		Logger:  clientCfg.Logger,
	})
}

func newGeminiClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return gemini.NewClient(gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		Endpoint:    cfg.Gemini.Endpoint,
		Temperature: cfg.Gemini.Temperature,
		MaxTokens:   cfg.Gemini.MaxTokens,
		Timeout:     time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		Logger:      clientCfg.Logger,
		Tracker:     clientCfg.Tracker,
	})
}

func newOpenRouterClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return openrouter.NewClient(openrouter.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		Model:       cfg.OpenRouter.Model,
		Temperature: cfg.OpenRouter.Temperature,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
		Logger:      clientCfg.Logger,
		Tracker:     clientCfg.Tracker,
	})
}

// GetAvailableProviders returns the providers that are configured
func GetAvailableProviders(cfg *am.Config) []Provider {
	var providers []Provider

	if cfg.LocalInference.Enabled {
		providers = append(providers, ProviderLocal)
	}
	if cfg.Gemini.APIKey != "" {
		providers = append(providers, ProviderGemini)
	}
	if cfg.OpenRouter.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}

	return providers
}

// ParseProvider converts a string to a Provider type
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "auto", "":
		return ProviderAuto, nil
	default:
		return "", errors.WithHint(
			errors.Newf("unknown provider: %s", s),
			"valid providers: gemini, openrouter, local, auto",
		)
	}
}

// Verify interfaces are implemented
var _ AIClient = (*openrouter.Client)(nil)
var _ AIClient = (*gemini.Client)(nil)
var _ AIClient = (*LocalProvider)(nil)
