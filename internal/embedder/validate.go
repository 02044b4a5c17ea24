package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If the configured embedding
// model matches any of these, a warning is emitted so the operator knows they
// may have misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// WarnIfMisconfigured emits startup warnings for embedding configurations
// that are valid but probably wrong, so operators find out before the first
// ingested document produces garbage vectors.
func WarnIfMisconfigured(cfg Config, log *slog.Logger) {
	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: configured model looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
	if cfg.Provider == "ollama" && cfg.Dimensions > 0 && cfg.Dimensions != defaultOllamaDimensions && cfg.Model == "" {
		log.Warn("embedder: custom dimensions set for the default ollama model",
			slog.Int("dimensions", cfg.Dimensions),
			slog.Int("model_default", defaultOllamaDimensions),
		)
	}
}
