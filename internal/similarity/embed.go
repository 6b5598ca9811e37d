package similarity

import (
	"fmt"
	"os"
	"strings"

	"github.com/philippgille/chromem-go"
)

// ProviderConfig selects an embedding backend.
type ProviderConfig struct {
	Provider  string // "openai", "ollama" or "none"
	Model     string
	BaseURL   string
	APIKeyEnv string
}

// NewEmbeddingFunc returns the embedding function for cfg.
// Provider "none" (or empty) returns nil, which scores every distinct pair 0.0.
func NewEmbeddingFunc(cfg ProviderConfig) (chromem.EmbeddingFunc, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil

	case "openai":
		envName := cfg.APIKeyEnv
		if envName == "" {
			envName = "OPENAI_API_KEY"
		}
		apiKey := os.Getenv(envName)
		if apiKey == "" {
			return nil, fmt.Errorf("embedding provider openai requires %s", envName)
		}
		model := cfg.Model
		if model == "" {
			model = string(chromem.EmbeddingModelOpenAI3Small)
		}
		if cfg.BaseURL != "" {
			return chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, apiKey, model, nil), nil
		}
		return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model)), nil

	case "ollama":
		if cfg.Model == "" {
			return nil, fmt.Errorf("embedding provider ollama requires a model")
		}
		// chromem-go falls back to the local Ollama endpoint on an empty base URL.
		return chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
