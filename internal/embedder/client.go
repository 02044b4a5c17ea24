package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// openaiTimeout bounds a single OpenAI/Azure embeddings call.
	openaiTimeout = 30 * time.Second
	// ollamaTimeout is longer because local models may need to load on first use.
	ollamaTimeout = 60 * time.Second
)

// httpClient is a thin JSON-over-HTTP helper shared by the embedding backends.
type httpClient struct {
	inner *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{inner: &http.Client{Timeout: timeout}}
}

// postJSON sends body as JSON to url and decodes the response into out.
// It returns the HTTP status code so callers can surface API-level errors
// from the decoded body.
func (c *httpClient) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}

	return resp.StatusCode, nil
}
