// Package provider constructs the LLM chat model used for answer generation
// and adapts it to the rag.Completer contract. Supported backends: Ollama,
// OpenAI, and Azure OpenAI, all via the eino component model abstraction.
package provider

import (
	"context"
	"fmt"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
)

// Answer-generation defaults. Temperature 0 keeps answers reproducible for
// a given retrieved context, which also keeps the response cache honest.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = float32(0.0)
)

// Config holds the resolved chat model settings.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name (e.g. "gpt-4o", "llama3"). For Azure this is
	// the deployment name.
	Model string

	// BaseURL overrides the default API endpoint (required for Azure).
	BaseURL string

	// APIKey is the authentication credential. Unused by Ollama.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens generated per answer.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// applyDefaults fills zero-valued tuning fields. Temperature is deliberately
// defaulted to 0 — an unset temperature and an explicit 0 mean the same thing.
func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendOllama
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
}

// New constructs a ChatModel for the configured backend. It validates the
// config first so callers get a clear error at startup rather than on the
// first request.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	cfg.applyDefaults()
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q — valid values: ollama, openai, azure", cfg.Backend)
	}
}

// newOllama constructs a ChatModel backed by a local Ollama instance.
func newOllama(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	m := cfg.Model
	if m == "" {
		m = "llama3"
	}
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: baseURL,
		Model:   m,
	})
}

// newOpenAI constructs a ChatModel backed by the OpenAI API.
func newOpenAI(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider: API key is required for openai backend")
	}
	m := cfg.Model
	if m == "" {
		m = "gpt-4o"
	}
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       m,
		APIKey:      cfg.APIKey,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
	})
}

// newAzure constructs a ChatModel backed by Azure OpenAI Service.
func newAzure(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider: API key is required for azure backend")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider: endpoint is required for azure backend")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider: deployment name is required for azure backend")
	}
	apiVersion := cfg.AzureAPIVersion
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		ByAzure:     true,
		APIVersion:  apiVersion,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		// Use the deployment name as-is — the default mapper strips dots/colons
		// which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	})
}
