package embedder

import (
	"fmt"

	"github.com/lektor-ai/lektor-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override via embedding.dimensions.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config holds the resolved embedding backend settings. The config package
// assembles this from YAML and environment variables; the factory only
// validates and constructs.
type Config struct {
	// Provider selects the backend: "ollama", "openai", or "azure".
	Provider string

	// Endpoint is the backend base URL. Defaults per provider when empty.
	Endpoint string

	// APIKey authenticates against openai/azure. Unused by ollama.
	APIKey string

	// Model is the embedding model name. Defaults per provider when empty.
	Model string

	// Dimensions is the embedding vector length. Defaults per provider when 0.
	Dimensions int

	// APIVersion is the Azure OpenAI API version. Ignored by other providers.
	APIVersion string
}

// DefaultDimensions returns the default embedding vector size for the given
// provider. Callers that pre-configure the vector store (collection creation)
// should use this rather than hardcoding a value.
func DefaultDimensions(provider string) int {
	if provider == "ollama" {
		return defaultOllamaDimensions
	}
	return defaultOpenAIDimensions
}

// ResolveDimensions returns cfg.Dimensions, falling back to the provider
// default when unset.
func (c Config) ResolveDimensions() int {
	if c.Dimensions > 0 {
		return c.Dimensions
	}
	return DefaultDimensions(c.Provider)
}

// New constructs a rag.Embedder for the configured provider.
func New(cfg Config) (rag.Embedder, error) {
	switch cfg.Provider {
	case "", "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires an API key")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.ResolveDimensions(),
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires an API key")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires an endpoint")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.ResolveDimensions(),
			Azure:      true,
			APIVersion: apiVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown provider %q — valid values: ollama, openai, azure", cfg.Provider)
	}
}
