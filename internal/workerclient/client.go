// Package workerclient is the Coordinator's HTTP client for the Processing
// Worker's wire protocol, built the way this codebase's AI clients wrap an
// HTTP backend behind a narrow interface.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

// Item is one unit of work in a /process-batch request.
type Item struct {
	ID             int64   `json:"id"`
	Text           string  `json:"text"`
	SourceLanguage *string `json:"source_language,omitempty"`
}

// Result is one unit of a /process-batch response: either a success (all
// four fields populated, Error empty) or a per-item failure (Error set).
type Result struct {
	ID               int64     `json:"id"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	TranslatedText   string    `json:"translated_text,omitempty"`
	Vector           []float32 `json:"vector,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Failed reports whether this Result carries a per-item error.
func (r Result) Failed() bool { return r.Error != "" }

type batchRequest struct {
	Items []Item `json:"items"`
}

type batchResponse struct {
	Results []Result `json:"results"`
	Error   string   `json:"error,omitempty"`
}

// Client is the narrow interface the Coordinator depends on, so tests can
// substitute an in-memory worker.
type Client interface {
	Health(ctx context.Context) (bool, error)
	ProcessBatch(ctx context.Context, items []Item) ([]Result, error)
}

// HTTPClient talks to a real Processing Worker over HTTP/1.1 JSON.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds an HTTPClient against baseURL using the given *http.Client
// (callers set its Timeout to the configured per-request timeout).
func New(baseURL string, httpClient *http.Client) *HTTPClient {
	return &HTTPClient{BaseURL: baseURL, HTTP: httpClient}
}

func (c *HTTPClient) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("workerclient: build health request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// ProcessBatch calls POST /process-batch. A transport error or 5xx status
// is returned as an error (retryable by the caller); a 4xx is returned as
// a non-retryable error; per-item failures surface inside the returned
// []Result and do not fail the call.
func (c *HTTPClient) ProcessBatch(ctx context.Context, items []Item) ([]Result, error) {
	body, err := json.Marshal(batchRequest{Items: items})
	if err != nil {
		return nil, fmt.Errorf("workerclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/process-batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("workerclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &TransportError{Err: fmt.Errorf("worker returned %d: %s", resp.StatusCode, string(raw))}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("workerclient: worker rejected batch (%d): %s", resp.StatusCode, string(raw))
	}

	var decoded batchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("workerclient: decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("workerclient: batch error: %s", decoded.Error)
	}

	for i, item := range items {
		if i >= len(decoded.Results) || decoded.Results[i].ID != item.ID {
			return nil, fmt.Errorf("workerclient: batch order violated at index %d", i)
		}
	}

	return decoded.Results, nil
}

// TransportError marks a failure the Coordinator should retry (transport
// error or 5xx), distinct from a non-retryable 4xx rejection.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("workerclient: transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ResultToEmbedding copies a successful Result's vector into a fixed-size
// domain.Embedding vector. Callers must check Failed() first.
func ResultToEmbedding(r Result) (vec [domain.EmbeddingDim]float32, err error) {
	if len(r.Vector) != domain.EmbeddingDim {
		return vec, fmt.Errorf("workerclient: expected %d-dim vector, got %d", domain.EmbeddingDim, len(r.Vector))
	}
	copy(vec[:], r.Vector)
	return vec, nil
}
