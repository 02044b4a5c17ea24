package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lektor-ai/lektor-go/internal/provider"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 2048
  temperature: 0.2
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2024-02-01"
embedding:
  provider: ollama
  model: nomic-embed-text
qdrant:
  host: qdrant.internal
  port: 6334
  collection: course-materials
redis:
  url: redis://cache.internal:6379/0
chunking:
  chunk_size_tokens: 400
  overlap_tokens: 40
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"REDIS_URL", "CHUNK_SIZE_TOKENS", "CHUNK_OVERLAP_TOKENS",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "2048",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2024-02-01",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION":        "course-materials",
		"REDIS_URL":                "redis://cache.internal:6379/0",
		"CHUNK_SIZE_TOKENS":        "400",
		"CHUNK_OVERLAP_TOKENS":     "40",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestResolve_Defaults(t *testing.T) {
	envKeys := []string{
		"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"REDIS_URL", "CHUNK_SIZE_TOKENS", "CHUNK_OVERLAP_TOKENS",
		"SCORE_THRESHOLD", "SERVER_HOST", "SERVER_PORT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	s := Resolve()

	if s.Model.Backend != provider.BackendOllama {
		t.Errorf("Model.Backend = %q, want %q", s.Model.Backend, provider.BackendOllama)
	}
	if s.Embedding.Provider != "ollama" {
		t.Errorf("Embedding.Provider = %q, want ollama", s.Embedding.Provider)
	}
	if s.Embedding.Dimensions != 768 {
		t.Errorf("Embedding.Dimensions = %d, want 768", s.Embedding.Dimensions)
	}
	if s.Qdrant.Collection != DefaultCollection {
		t.Errorf("Qdrant.Collection = %q, want %q", s.Qdrant.Collection, DefaultCollection)
	}
	if s.Qdrant.VectorSize != 768 {
		t.Errorf("Qdrant.VectorSize = %d, want 768", s.Qdrant.VectorSize)
	}
	if s.Chunking.ChunkSizeTokens != DefaultChunkSizeTokens {
		t.Errorf("ChunkSizeTokens = %d, want %d", s.Chunking.ChunkSizeTokens, DefaultChunkSizeTokens)
	}
	if s.Chunking.OverlapTokens != DefaultOverlapTokens {
		t.Errorf("OverlapTokens = %d, want %d", s.Chunking.OverlapTokens, DefaultOverlapTokens)
	}
	if s.ScoreThreshold != 0 {
		t.Errorf("ScoreThreshold = %v, want 0", s.ScoreThreshold)
	}
}

func TestResolve_AzureModel(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "k")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://r.openai.azure.com")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")

	s := Resolve()

	if s.Model.Backend != provider.BackendAzure {
		t.Fatalf("Model.Backend = %q, want azure", s.Model.Backend)
	}
	if s.Model.BaseURL != "https://r.openai.azure.com" {
		t.Errorf("Model.BaseURL = %q", s.Model.BaseURL)
	}
	if s.Model.Model != "gpt-4o" {
		t.Errorf("Model.Model = %q, want gpt-4o", s.Model.Model)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
