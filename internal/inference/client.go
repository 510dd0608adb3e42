package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/meditwin-platform/meditwin/internal/config"
	"github.com/meditwin-platform/meditwin/internal/metrics"
)

// ErrUnavailable signals the language-model service could not be reached or
// answered with an error.
var ErrUnavailable = errors.New("inference service unavailable")

// Client calls the external language-model service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.InferenceConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type completeRequest struct {
	Prompt string `json:"prompt"`
}

type completeResponse struct {
	Text string `json:"text"`
}

// Complete sends a prompt and returns the raw free-text reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completeRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshaling inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ExternalCallDuration.WithLabelValues("inference").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalCallErrorsTotal.WithLabelValues("inference").Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ExternalCallErrorsTotal.WithLabelValues("inference").Inc()
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ExternalCallErrorsTotal.WithLabelValues("inference").Inc()
		return "", fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return out.Text, nil
}
