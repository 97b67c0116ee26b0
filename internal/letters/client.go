package letters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prefill/internal/metrics"
)

// ErrRejected is returned with a populated BulkResult.Errors when the
// backend refuses the request with a 4xx and an error list.
var ErrRejected = errors.New("letters: bulk request rejected")

// BulksPath is appended to the client's base URL.
const BulksPath = "/v1/letters/bulks"

// Submitter sends one bulk request. Submissions are never retried.
type Submitter interface {
	Submit(ctx context.Context, req BulkRequest) (BulkResult, error)
}

// Client is the HTTP Submitter.
type Client struct {
	baseURL string
	creds   CredentialProvider
	client  *http.Client
	timeout time.Duration
}

// NewClient returns a Client. A nil client uses http.DefaultClient; a
// non-positive timeout defaults to 30s.
func NewClient(baseURL string, creds CredentialProvider, client *http.Client, timeout time.Duration) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  client,
		timeout: timeout,
	}
}

var _ Submitter = (*Client)(nil)

// Submit posts req. A 2xx returns the batch id; a 4xx carrying an error list
// returns those errors with ErrRejected; any other status returns an error
// with the status code and up to 4KB of the body.
func (c *Client) Submit(ctx context.Context, req BulkRequest) (BulkResult, error) {
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return BulkResult{}, fmt.Errorf("letters: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+BulksPath, bytes.NewReader(body))
	if err != nil {
		return BulkResult{}, fmt.Errorf("letters: new request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+key)
	hreq.Header.Set("User-Agent", "prefill/1.0")

	start := time.Now()
	resp, err := c.client.Do(hreq)
	if err != nil {
		metrics.RecordHTTP(0, err, time.Since(start))
		return BulkResult{}, fmt.Errorf("letters: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	metrics.RecordHTTP(resp.StatusCode, err, time.Since(start))
	if err != nil {
		return BulkResult{}, fmt.Errorf("letters: read body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var ok struct {
			BatchID string `json:"batchId"`
		}
		if err := json.Unmarshal(raw, &ok); err != nil {
			return BulkResult{}, fmt.Errorf("letters: decode response: %w", err)
		}
		if ok.BatchID == "" {
			return BulkResult{}, fmt.Errorf("letters: response has no batchId")
		}
		return BulkResult{BatchID: ok.BatchID}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var rej struct {
			Errors []APIError `json:"errors"`
		}
		if json.Unmarshal(raw, &rej) == nil && len(rej.Errors) > 0 {
			return BulkResult{Errors: rej.Errors}, fmt.Errorf("%w: http status %d", ErrRejected, resp.StatusCode)
		}
	}
	return BulkResult{}, fmt.Errorf("letters: http status %d: %s", resp.StatusCode, snippet(raw))
}

func snippet(b []byte) string {
	if len(b) > 4096 {
		b = b[:4096]
	}
	return strings.TrimSpace(string(b))
}
