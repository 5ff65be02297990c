// Package embedding generates vector embeddings for events, used by the
// hybrid search's k-NN branch and the Context Matcher (spec §4.5, §4.10).
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a raw net/http call to an OpenAI-compatible /embeddings
// endpoint, mirroring internal/tier.Client's call shape.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewClient creates an embedding client targeting the given dimension
// (spec's configurable EMBEDDING_DIMENSION, default 768).
func NewClient(baseURL, apiKey, model string, dimension int) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Dimension returns the configured embedding vector length.
func (c *Client) Dimension() int {
	return c.dimension
}

// Generate embeds text, returning a vector of length Dimension(). On any
// upstream failure the caller is expected to proceed with a nil embedding
// (spec §4.6 step 7: "on failure, proceed with null"), never blocking
// ingestion on it.
func (c *Client) Generate(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding: empty input")
	}

	requestBody := map[string]interface{}{
		"model": c.model,
		"input": text,
	}
	body, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: upstream status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResponse struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &apiResponse); err != nil {
		return nil, fmt.Errorf("embedding: parsing response: %w", err)
	}
	if len(apiResponse.Data) == 0 {
		return nil, fmt.Errorf("embedding: no data in response")
	}
	return apiResponse.Data[0].Embedding, nil
}
