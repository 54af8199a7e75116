// Package qdrant provides a minimal Qdrant HTTP client and the interview
// memory store built on it.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is a minimal Qdrant HTTP client used by the app.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Qdrant client with baseURL and optional apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Point is a stored vector with its payload.
type Point struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Filter is a Qdrant filter with "must" conditions.
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// Condition matches a payload key against a value.
type Condition struct {
	Key   string         `json:"key"`
	Match map[string]any `json:"match"`
}

// MatchKeyword builds a filter requiring payload[key] == value.
func MatchKeyword(key string, value any) *Filter {
	return &Filter{Must: []Condition{{Key: key, Match: map[string]any{"value": value}}}}
}

// EnsureCollection creates the collection if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int, distance string) error {
	status, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	payload := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": distance},
	}
	status, err = c.do(ctx, http.MethodPut, "/collections/"+name, payload, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("qdrant ensure create status %d", status)
	}
	return nil
}

// DeleteCollection drops the collection. A missing collection is not an error.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	status, err := c.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || (status >= 200 && status < 300) {
		return nil
	}
	return fmt.Errorf("qdrant delete collection status %d", status)
}

// UpsertPoints inserts or updates points in a collection.
func (c *Client) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	status, err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", map[string]any{"points": points}, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("qdrant upsert status %d", status)
	}
	return nil
}

// Search returns the topK nearest points, optionally restricted by filter.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]ScoredPoint, error) {
	body := map[string]any{"vector": vector, "limit": topK, "with_payload": true}
	if filter != nil {
		body["filter"] = filter
	}
	var out struct {
		Result []ScoredPoint `json:"result"`
	}
	status, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("qdrant search status %d", status)
	}
	return out.Result, nil
}

// DeletePoints removes every point that matches filter.
func (c *Client) DeletePoints(ctx context.Context, collection string, filter *Filter) error {
	status, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", map[string]any{"filter": filter}, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("qdrant delete points status %d", status)
	}
	return nil
}

// Ping checks that Qdrant answers.
func (c *Client) Ping(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/collections", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant status %d", status)
	}
	return nil
}

// do sends body as JSON and decodes a 2xx response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, err
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
