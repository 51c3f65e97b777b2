package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tliops/kbsync/internal/errors"
)

const (
	// shortTimeout bounds cheap calls (status, delete, report).
	shortTimeout = 10 * time.Second
	// ingestTimeout bounds ingest calls, which index chunk-by-chunk.
	ingestTimeout = 120 * time.Second

	adminKeyHeader = "X-Admin-Key"
)

// Client talks to the store service over HTTP.
type Client struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
}

// Options configures a Client.
type Options struct {
	// AdminKey is sent as X-Admin-Key on every request. Empty means the
	// store runs without authentication.
	AdminKey string
	// Timeout overrides the outer client timeout (0 = no outer timeout,
	// per-call contexts bound each request).
	Timeout time.Duration
}

// NewClient creates a store client for the given base URL.
func NewClient(baseURL string) *Client {
	return NewClientWithOptions(baseURL, Options{})
}

// NewClientWithOptions creates a store client with explicit options.
func NewClientWithOptions(baseURL string, options Options) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		adminKey: options.AdminKey,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   options.Timeout,
		},
	}
}

// BaseURL returns the configured store address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ingest replaces the document's chunk set in the store. The store
// short-circuits when doc_hash matches its catalog; the response says
// which path it took.
func (c *Client) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	var resp IngestResponse
	if err := c.post(ctx, "/ingest", ingestTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteDocument removes a document from the store. Deleting an unknown
// document is not an error; the response status reports not_found.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) (*DeleteResponse, error) {
	var resp DeleteResponse
	req := DeleteRequest{DocumentID: documentID}
	if err := c.post(ctx, "/delete_document", shortTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Query asks the store for the top matches of a text query. topK of 0
// takes the store default.
func (c *Client) Query(ctx context.Context, query string, topK int) (*QueryResponse, error) {
	var resp QueryResponse
	req := QueryRequest{Query: query, TopK: topK}
	if err := c.post(ctx, "/query", shortTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns the store's document and chunk counts.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/admin/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LastRun fetches the most recent run report pushed to the store. The
// second return is false when no run has reported yet.
func (c *Client) LastRun(ctx context.Context) (*RunReport, bool, error) {
	var payload struct {
		Status string `json:"status"`
		RunReport
	}
	if err := c.get(ctx, "/admin/indexer_status", &payload); err != nil {
		return nil, false, err
	}
	if payload.Status == "no_runs" {
		return nil, false, nil
	}
	report := payload.RunReport
	return &report, true, nil
}

// ReportStatus pushes the end-of-run summary. Failures here are advisory;
// callers log and move on.
func (c *Client) ReportStatus(ctx context.Context, report *RunReport) error {
	return c.post(ctx, "/admin/indexer_status", shortTimeout, report, nil)
}

// Health probes the store's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.InternalError(fmt.Sprintf("failed to encode %s request", path), err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.InternalError("failed to build store request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.InternalError("failed to build store request", err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	if c.adminKey != "" {
		req.Header.Set(adminKeyHeader, c.adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return errors.New(errors.ErrCodeStoreTimeout,
				fmt.Sprintf("store request %s timed out", path), err).
				WithSuggestion("check store load, or raise the request timeout")
		}
		return errors.StoreError(
			fmt.Sprintf("store unreachable at %s", c.baseURL), err).
			WithSuggestion("verify the store service is running")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.StoreError("failed to read store response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New(errors.ErrCodeStoreUnauthorized,
			"store rejected admin key", nil).
			WithSuggestion("check the configured admin key")
	case resp.StatusCode >= 400:
		return errors.New(errors.ErrCodeStoreRejected,
			fmt.Sprintf("store returned %d for %s: %s",
				resp.StatusCode, path, truncate(string(data), 200)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.StoreError(
			fmt.Sprintf("invalid store response for %s", path), err)
	}
	return nil
}

func isTimeout(err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
