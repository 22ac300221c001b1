package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultMaxBytes caps the size of a fetched document.
const DefaultMaxBytes = 4 << 20

// HTTP loads references over HTTP(S).
type HTTP struct {
	client   *http.Client
	base     *url.URL
	maxBytes int64
}

// HTTPOption configures an HTTP loader.
type HTTPOption func(*HTTP)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(l *HTTP) {
		l.client.Timeout = d
	}
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(l *HTTP) {
		if c != nil {
			l.client = c
		}
	}
}

// WithBaseURL resolves relative references against base.
func WithBaseURL(base *url.URL) HTTPOption {
	return func(l *HTTP) {
		l.base = base
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) HTTPOption {
	return func(l *HTTP) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// NewHTTP creates an HTTP loader.
func NewHTTP(opts ...HTTPOption) *HTTP {
	l := &HTTP{
		client:   &http.Client{Timeout: 10 * time.Second},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader.
func (l *HTTP) Load(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	if l.base != nil {
		u = l.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("reference %q is not absolute and no base URL is set", ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", u, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("fetching %s: document exceeds %d bytes", u, l.maxBytes)
	}
	return data, nil
}
