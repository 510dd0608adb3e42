package extraction

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

// ErrUnavailable signals the extraction service could not be asked at all,
// as opposed to answering with zero entities.
var ErrUnavailable = errors.New("extraction service unavailable")

// Client calls the external entity-extraction service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.ExtractionConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Entities []RawEntity `json:"entities"`
}

// Extract sends text to the extraction service and returns normalized,
// deduplicated entities. Transport failures, timeouts and non-2xx replies
// all wrap ErrUnavailable.
func (c *Client) Extract(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ExternalCallDuration.WithLabelValues("extraction").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalCallErrorsTotal.WithLabelValues("extraction").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ExternalCallErrorsTotal.WithLabelValues("extraction").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ExternalCallErrorsTotal.WithLabelValues("extraction").Inc()
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	return Normalize(out.Entities), nil
}
