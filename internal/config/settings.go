package config

import (
	"github.com/lektor-ai/lektor-go/internal/embedder"
	"github.com/lektor-ai/lektor-go/internal/ingestion"
	"github.com/lektor-ai/lektor-go/internal/provider"
	"github.com/lektor-ai/lektor-go/internal/rag"
)

// Retrieval defaults.
const (
	DefaultChunkSizeTokens = 500
	DefaultOverlapTokens   = 50
	DefaultCollection      = "course_rag"
	DefaultQdrantPort      = 6334
)

// Settings holds the resolved runtime configuration after precedence layering
// (defaults → YAML → env) has been applied. CLI commands call Resolve after
// Load and hand the pieces to the component constructors.
type Settings struct {
	Model     provider.Config
	Embedding embedder.Config
	Qdrant    rag.QdrantConfig
	RedisURL  string
	Chunking  ingestion.Config
	// ScoreThreshold discards semantic search results below it. Zero disables.
	ScoreThreshold float32
	ServerHost     string
	ServerPort     int
	APIKey         string
	JobsDBPath     string
	LogLevel       string
	LogFormat      string
}

// Resolve reads the environment into a Settings value, applying defaults for
// anything unset. Call after Load so YAML values have been projected into env.
func Resolve() Settings {
	embCfg := embedder.Config{
		Provider:   Env("EMBEDDING_PROVIDER", "ollama"),
		Endpoint:   Env("EMBEDDING_ENDPOINT", ""),
		APIKey:     Env("EMBEDDING_API_KEY", ""),
		Model:      Env("EMBEDDING_MODEL", ""),
		Dimensions: EnvInt("EMBEDDING_DIMENSIONS", 0),
		APIVersion: Env("AZURE_OPENAI_API_VERSION", ""),
	}
	embCfg.Dimensions = embCfg.ResolveDimensions()

	return Settings{
		Model:     resolveModel(),
		Embedding: embCfg,
		Qdrant: rag.QdrantConfig{
			Host:       Env("QDRANT_HOST", "localhost"),
			Port:       EnvInt("QDRANT_PORT", DefaultQdrantPort),
			Collection: Env("QDRANT_COLLECTION", DefaultCollection),
			VectorSize: uint64(embCfg.Dimensions),
			APIKey:     Env("QDRANT_API_KEY", ""),
			UseTLS:     EnvBool("QDRANT_TLS"),
		},
		RedisURL: Env("REDIS_URL", ""),
		Chunking: ingestion.Config{
			ChunkSizeTokens: EnvInt("CHUNK_SIZE_TOKENS", DefaultChunkSizeTokens),
			OverlapTokens:   EnvInt("CHUNK_OVERLAP_TOKENS", DefaultOverlapTokens),
		},
		ScoreThreshold: EnvFloat32("SCORE_THRESHOLD", 0),
		ServerHost:     Env("SERVER_HOST", "127.0.0.1"),
		ServerPort:     EnvInt("SERVER_PORT", 8080),
		APIKey:         Env("LEKTOR_API_KEY", ""),
		JobsDBPath:     Env("LEKTOR_JOBS_DB", ""),
		LogLevel:       Env("LOG_LEVEL", "info"),
		LogFormat:      Env("LOG_FORMAT", "json"),
	}
}

// resolveModel builds the chat model provider config from env vars.
// Fields left empty here fall through to provider.New's backend defaults.
func resolveModel() provider.Config {
	backend := provider.Backend(Env("MODEL_PROVIDER", string(provider.BackendOllama)))

	cfg := provider.Config{
		Backend:     backend,
		MaxTokens:   EnvInt("MODEL_MAX_TOKENS", provider.DefaultMaxTokens),
		Temperature: EnvFloat32("MODEL_TEMPERATURE", provider.DefaultTemperature),
	}

	switch backend {
	case provider.BackendOpenAI:
		cfg.APIKey = Env("OPENAI_API_KEY", "")
		cfg.Model = Env("OPENAI_MODEL", "")
	case provider.BackendAzure:
		cfg.APIKey = Env("AZURE_OPENAI_API_KEY", "")
		cfg.BaseURL = Env("AZURE_OPENAI_ENDPOINT", "")
		cfg.Model = Env("AZURE_OPENAI_DEPLOYMENT", "")
		cfg.AzureAPIVersion = Env("AZURE_OPENAI_API_VERSION", "")
	default:
		cfg.BaseURL = Env("OLLAMA_HOST", "")
		cfg.Model = Env("OLLAMA_MODEL", "")
	}

	return cfg
}
