// Package embedder provides implementations of the rag.Embedder interface for
// converting course-material text into dense vector embeddings, plus the
// normalization, caching, and batching layers the ingestion and query paths
// share. Backends (OpenAI, Azure OpenAI, Ollama) are reached via plain HTTP;
// no additional SDK dependencies are required.
package embedder

import (
	"context"
	"fmt"
)

// OpenAIEmbedder implements rag.Embedder using the OpenAI (or Azure OpenAI)
// embeddings REST API. It is safe for concurrent use.
type OpenAIEmbedder struct {
	cfg    OpenAIConfig
	client *httpClient
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-3-small").
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version (e.g. "2025-04-01-preview").
	// Ignored when Azure is false.
	APIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{cfg: *cfg, client: newHTTPClient(openaiTimeout)}
}

// openaiEmbedRequest is the JSON body sent to the embeddings endpoint.
type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiEmbedResponse is the JSON body returned from the embeddings endpoint.
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// url returns the embeddings endpoint for the configured deployment style.
func (e *OpenAIEmbedder) url() string {
	if e.cfg.Azure {
		return e.cfg.BaseURL + "/deployments/" + e.cfg.Model + "/embeddings?api-version=" + e.cfg.APIVersion
	}
	return e.cfg.BaseURL + "/embeddings"
}

// headers returns the auth headers for the configured deployment style.
func (e *OpenAIEmbedder) headers() map[string]string {
	if e.cfg.Azure {
		return map[string]string{"api-key": e.cfg.APIKey}
	}
	return map[string]string{"Authorization": "Bearer " + e.cfg.APIKey}
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := openaiEmbedRequest{
		Input: texts,
		Model: e.cfg.Model,
	}
	if e.cfg.Dimensions > 0 {
		body.Dimensions = e.cfg.Dimensions
	}

	var result openaiEmbedResponse
	status, err := e.client.postJSON(ctx, e.url(), e.headers(), body, &result)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	if status < 200 || status >= 300 {
		msg := fmt.Sprintf("HTTP %d", status)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("openai embedder: %s", msg)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return data out of order; sort by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}
