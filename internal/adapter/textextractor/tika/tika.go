// Package tika extracts resume text through an Apache Tika server.
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-mock-interview/pkg/textx"
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
// It performs PUT /tika with Accept: text/plain to retrieve extracted text.
type Client struct {
	baseURL    string
	httpClient *http.Client
	roots      []string
	attempts   uint64
}

// Option tunes a Client.
type Option func(*Client)

// WithAllowedRoots replaces the directories ExtractPath may read from.
// An empty list allows any path.
func WithAllowedRoots(roots ...string) Option {
	return func(c *Client) { c.roots = roots }
}

// New constructs a Tika client. By default ExtractPath only reads files
// under the system temp dir and the working directory.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9998"
	}
	wd, _ := os.Getwd()
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		roots:    []string{os.TempDir(), wd},
		attempts: 3,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ExtractPath reads the file at path and returns its collapsed plain text.
func (c *Client) ExtractPath(ctx context.Context, fileName, path string) (string, error) {
	p, err := c.resolve(path)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return c.extract(ctx, fileName, b)
}

// Extract returns the collapsed plain text of an uploaded document.
func (c *Client) Extract(ctx context.Context, fileName string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return c.extract(ctx, fileName, b)
}

func (c *Client) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	if len(c.roots) == 0 {
		return abs, nil
	}
	for _, root := range c.roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		if abs == root || strings.HasPrefix(abs, root+string(os.PathSeparator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("disallowed path: %s", abs)
}

func (c *Client) extract(ctx context.Context, fileName string, body []byte) (string, error) {
	var result string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tika", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "text/plain")
		if ct := contentTypeFromExt(filepath.Ext(fileName)); ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("tika status %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("tika status %d", resp.StatusCode))
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		result = textx.Collapse(string(b))
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(backoff.WithInitialInterval(50*time.Millisecond)), c.attempts-1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return result, nil
}

func contentTypeFromExt(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case "":
		return ""
	default:
		return mime.TypeByExtension(ext)
	}
}
