package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// PeekFn fetches at most n bytes from the start of a source.
type PeekFn func(ctx context.Context, url string, n int, insecure bool) ([]byte, error)

// peekFn is overridden by tests to avoid real I/O.
var peekFn PeekFn = peek

// peek reads the first n bytes of an http(s) URL, a file:// URL or a bare
// local path.
func peek(ctx context.Context, url string, n int, insecure bool) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("peek: n must be > 0")
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		f, err := os.Open(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readPrefix(f, n)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))

	client := http.DefaultClient
	if insecure {
		client = &http.Client{Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return readPrefix(resp.Body, n)
}

func readPrefix(r io.Reader, n int) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, int64(n))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// trimPartialLine drops a trailing half line from a sample that filled its
// byte budget.
func trimPartialLine(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	if i := bytes.LastIndexByte(b, '\n'); i > 0 {
		return b[:i+1]
	}
	return b
}
