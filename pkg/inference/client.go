package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// InvokeResult is one completed inference call.
type InvokeResult struct {
	Text          string  `json:"text"`
	EstimatedCost float64 `json:"estimated_cost"`
	TokensUsed    int64   `json:"tokens_used"`
}

// Invoker is the external inference service.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, maxTokens int, temperature float64) (*InvokeResult, error)
}

// HTTPClient calls the inference service over its REST API.
type HTTPClient struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewHTTPClient creates an inference client for the given model.
func NewHTTPClient(url, apiKey, model string) *HTTPClient {
	return &HTTPClient{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type invokeRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

func (c *HTTPClient) Invoke(ctx context.Context, prompt string, maxTokens int, temperature float64) (*InvokeResult, error) {
	body, err := json.Marshal(invokeRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &retry.TransientError{Op: "inference invoke", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
		}
		message := string(payload)
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return nil, retry.FromStatus("inference invoke", resp.StatusCode, errors.New(message))
	}

	var result InvokeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}
	return &result, nil
}
