package embed

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config selects and parameterizes an embedding backend.
type Config struct {
	// Provider: auto|ollama|genai|mock. Auto prefers GenAI when a key is
	// configured, then a reachable Ollama server, then the mock.
	Provider       string
	OllamaEndpoint string
	OllamaModel    string
	GenAIAPIKey    string
	GenAIModel     string
}

// New builds an embedder per config. The returned error is fatal only for an
// explicitly requested provider; auto mode always succeeds by falling back
// to the mock.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	switch provider {
	case "ollama":
		return NewOllamaEmbedder(OllamaConfig{Endpoint: cfg.OllamaEndpoint, Model: cfg.OllamaModel}), nil
	case "genai":
		return NewGenAIEmbedder(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
	case "mock":
		return NewMockEmbedder(), nil
	case "auto":
		if strings.TrimSpace(cfg.GenAIAPIKey) != "" {
			if e, err := NewGenAIEmbedder(ctx, cfg.GenAIAPIKey, cfg.GenAIModel); err == nil {
				return e, nil
			}
		}
		ollama := NewOllamaEmbedder(OllamaConfig{Endpoint: cfg.OllamaEndpoint, Model: cfg.OllamaModel})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := ollama.HealthCheck(pingCtx); err == nil {
			return ollama, nil
		}
		return NewMockEmbedder(), nil
	default:
		return nil, fmt.Errorf("invalid embed provider: %q (expected auto|ollama|genai|mock)", cfg.Provider)
	}
}
