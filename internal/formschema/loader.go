package formschema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prefill/internal/metrics"
)

// Input says where the form page comes from: URL when set, else Stdin.
type Input struct {
	URL   string
	Stdin io.Reader
}

// Loader fetches or reads a form page with a fixed timeout.
type Loader struct {
	client  *http.Client
	timeout time.Duration
}

// NewLoader creates a Loader. If client is nil, http.DefaultClient is used.
func NewLoader(client *http.Client, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, timeout: timeout}
}

// Load returns the page HTML. On a non-2xx response the error carries the
// status code and up to 4KB of the body.
func (l *Loader) Load(ctx context.Context, in Input) (string, error) {
	if strings.TrimSpace(in.URL) == "" {
		if in.Stdin == nil {
			return "", nil
		}
		b, err := io.ReadAll(in.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "prefill-formfields/1.0")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		metrics.RecordHTTP(0, err, time.Since(start))
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordHTTP(resp.StatusCode, nil, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}
