package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client calls an OpenAI-compatible embeddings endpoint with bearer auth.
// Each request carries a bounded timeout and transient failures are retried
// with exponential backoff.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// NewClient creates a provider client. The API key is read from the
// environment variable named by apiKeyEnv.
func NewClient(baseURL, model, apiKeyEnv string, timeout time.Duration, maxRetries int) (*Client, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Embed posts {model, input} and returns the vector at data[0].embedding.
// Returns *Error on transport failure, non-2xx status, or a malformed response.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &Error{Msg: "request cancelled", Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		vec, retryable, err := c.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

// embedOnce performs a single provider call. The second return reports whether
// the failure is transient (network error or 5xx/429) and worth retrying.
func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, bool, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, false, &Error{Msg: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, &Error{Msg: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, &Error{Msg: "provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, &Error{Msg: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		preview := string(respBody)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, retryable, &Error{Msg: fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, preview)}
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, &Error{Msg: "failed to parse response", Err: err}
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, false, &Error{Msg: "response missing embedding vector"}
	}
	return parsed.Data[0].Embedding, false, nil
}
