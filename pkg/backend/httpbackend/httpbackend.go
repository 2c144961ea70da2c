// Package httpbackend adapts an HTTP object store to the
// backend.Backend contract: GET with Range for reads, PUT with
// Content-Range for writes, DELETE for removal. It is grounded on the
// API client's request/token/timeout style (pkg/apiclient/client.go),
// adapted from a JSON REST client to a byte-range object client.
package httpbackend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/cachefs/pkg/backend"
)

// DefaultTimeout is the per-request timeout applied when Config.Timeout
// is zero, matching §5's "backend operations may carry internal
// timeouts (e.g. 30s default)".
const DefaultTimeout = 30 * time.Second

// Config configures the HTTP backend.
type Config struct {
	// BaseURL is prepended to every object path, e.g. "https://store.example.com".
	BaseURL string

	// Token, if set, is attached as "Authorization: Bearer <token>".
	Token string

	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
}

// Backend is an HTTP-backed implementation of backend.Backend.
type Backend struct {
	baseURL string
	token   string
	client  *http.Client
}

// New builds an HTTP backend from config.
func New(config Config) *Backend {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Backend{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		token:   config.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *Backend) url(path string) string {
	return b.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (b *Backend) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("httpbackend: create request: %w", err)
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return req, nil
}

// GetRange issues GET with a Range header and accepts both 200 (full
// body, short reads handled by io.ReadFull) and 206 (partial content).
func (b *Backend) GetRange(ctx context.Context, path string, buf []byte, offset int64) (int, error) {
	req, err := b.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(buf))-1))

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpbackend: get %q: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, backend.ErrUnsupported
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("httpbackend: get %q: unexpected status %d", path, resp.StatusCode)
	}

	n, err := io.ReadFull(resp.Body, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("httpbackend: read body for %q: %w", path, err)
	}
	return n, nil
}

// PutRange issues PUT with a Content-Range header describing where buf
// lands in the object.
func (b *Backend) PutRange(ctx context.Context, path string, buf []byte, offset int64) (int, error) {
	req, err := b.newRequest(ctx, http.MethodPut, path, bytes.NewReader(buf))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/*", offset, offset+int64(len(buf))-1))
	req.ContentLength = int64(len(buf))

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpbackend: put %q: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("httpbackend: put %q: unexpected status %d", path, resp.StatusCode)
	}
	return len(buf), nil
}

// Delete issues DELETE for path.
func (b *Backend) Delete(ctx context.Context, path string) error {
	req, err := b.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpbackend: delete %q: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("httpbackend: delete %q: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

var _ backend.Backend = (*Backend)(nil)
