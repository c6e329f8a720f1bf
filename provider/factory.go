package provider

import (
	"fmt"
	"log/slog"
)

// NewTransport creates the transport named by cfg.Type.
//
// Returns an error if:
//   - The provider type is unknown
//   - The transport constructor fails (e.g., invalid URL, missing API key)
func NewTransport(cfg Config, logger *slog.Logger) (Transport, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return NewOllamaTransport(cfg, logger)
	case ProviderTypeOpenRouter:
		return NewOpenRouterTransport(cfg), nil
	case ProviderTypeOpenAI, "":
		return NewOpenAITransport(cfg), nil
	case ProviderTypeAnthropic:
		return NewAnthropicTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// NewClient creates a Client over the transport named by cfg.Type.
//
// Example:
//
//	c, err := provider.NewClient(provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	}, logger)
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	t, err := NewTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(t, logger), nil
}

// MapProviderIDToType converts a config provider ID to a ProviderType.
// Unknown IDs are passed through as-is (the factory will error).
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}
