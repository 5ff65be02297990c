package tier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the T1 LLM call path: a raw net/http client posting to an
// OpenAI-compatible /chat/completions endpoint with a JSON-schema
// structured-output request (spec §4.6 step 5/6, grounded on the teacher's
// memory extraction call shape).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a T1 LLM client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallStructured sends system+user messages with a strict JSON-schema
// response_format and decodes the model's single JSON content string into
// out.
func (c *Client) CallStructured(ctx context.Context, schemaName string, schema map[string]interface{}, systemPrompt, userPrompt string, out interface{}) error {
	requestBody := map[string]interface{}{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		"stream":      false,
		"temperature": 0.3,
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}

	body, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("tier: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("tier: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("tier: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tier: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tier: upstream status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &apiResponse); err != nil {
		return fmt.Errorf("tier: parsing response envelope: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return fmt.Errorf("tier: no choices in response")
	}

	if err := json.Unmarshal([]byte(apiResponse.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("tier: parsing structured content: %w", err)
	}
	return nil
}

// Ping is a minimal T1 health probe: a 1-token completion request, used by
// Orchestrator.HealthProbe.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{"ok": map[string]interface{}{"type": "boolean"}},
		"required":             []string{"ok"},
		"additionalProperties": false,
	}
	return c.CallStructured(ctx, "health_probe", schema, "Reply with ok:true.", "ping", &out)
}
