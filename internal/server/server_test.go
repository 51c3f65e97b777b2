package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tliops/kbsync/internal/chunk"
	"github.com/tliops/kbsync/internal/gateway"
	"github.com/tliops/kbsync/internal/store"
)

func chunksForClient(docID string, texts ...string) []chunk.Chunk {
	return chunk.Build(docID, "kb", "/mnt/kb/"+docID, texts)
}

func newTestServer(t *testing.T, adminKey string) *httptest.Server {
	t.Helper()
	svc, err := store.NewService("")
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	srv := New(svc, Options{AdminKey: adminKey, Collection: "kb_chunks"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	resp.Body.Close()
	return resp, decoded
}

func ingestBody(docID, hash, text string) map[string]any {
	return map[string]any{
		"document_id": docID,
		"doc_hash":    hash,
		"chunks": []map[string]any{
			{"id": docID + "#chunk-0", "text": text, "metadata": map[string]any{"document_id": docID}},
		},
	}
}

func TestIngestEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	resp, body := postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "severance policy details"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "indexed", body["status"])
	assert.Equal(t, float64(1), body["version"])
	assert.Equal(t, float64(1), body["chunks_indexed"])

	// Same hash: skipped, version stays.
	resp, body = postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "severance policy details"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "skipped_unchanged", body["status"])
	assert.Equal(t, float64(1), body["version"])

	// New hash: reindexed, version bumps.
	resp, body = postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h2", "revised severance policy"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "indexed", body["status"])
	assert.Equal(t, float64(2), body["version"])
}

func TestIngestWithoutChunks(t *testing.T) {
	ts := newTestServer(t, "")
	resp, body := postJSON(t, ts.URL+"/ingest", map[string]any{
		"document_id": "kb/a.txt",
		"doc_hash":    "h1",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no_chunks", body["status"])

	// Nothing was stored.
	resp, body = postJSON(t, ts.URL+"/delete_document", map[string]any{"document_id": "kb/a.txt"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "not_found", body["status"])
}

func TestIngestRejectsMissingDocumentID(t *testing.T) {
	ts := newTestServer(t, "")
	resp, _ := postJSON(t, ts.URL+"/ingest", map[string]any{"doc_hash": "h"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "database failover runbook"), nil)

	resp, body := postJSON(t, ts.URL+"/query", map[string]any{"query": "failover", "top_k": 3}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "kb/a.txt", hit["document_id"])
}

func TestDeleteEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "content"), nil)

	resp, body := postJSON(t, ts.URL+"/delete_document", map[string]any{"document_id": "kb/a.txt"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deleted", body["status"])
	assert.Equal(t, float64(1), body["chunks_removed"])

	resp, body = postJSON(t, ts.URL+"/delete_document", map[string]any{"document_id": "kb/a.txt"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "not_found", body["status"])
}

func TestAdminKeyEnforcement(t *testing.T) {
	ts := newTestServer(t, "secret")

	resp, _ := postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "x"), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "x"),
		map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "x"),
		map[string]string{"X-Admin-Key": "secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Query stays open; health stays open.
	resp, _ = postJSON(t, ts.URL+"/query", map[string]any{"query": "x"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	hresp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	hresp.Body.Close()
	assert.Equal(t, http.StatusOK, hresp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	postJSON(t, ts.URL+"/ingest", ingestBody("kb/a.txt", "h1", "one"), nil)
	postJSON(t, ts.URL+"/ingest", ingestBody("kb/b.txt", "h2", "two"), nil)

	resp, err := http.Get(ts.URL + "/admin/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(2), body["documents"])
	assert.Equal(t, float64(2), body["chunks"])
	assert.Equal(t, "kb_chunks", body["collection"])
}

func TestIndexerStatusRoundTrip(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/admin/indexer_status")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "no_runs", body["status"])

	report := map[string]any{"files_seen": 12, "kb_roots": []string{"policies"}}
	presp, _ := postJSON(t, ts.URL+"/admin/indexer_status", report, nil)
	require.Equal(t, http.StatusOK, presp.StatusCode)

	resp, err = http.Get(ts.URL + "/admin/indexer_status")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, float64(12), body["files_seen"])

	// The run report also rides along on /admin/status.
	resp, err = http.Get(ts.URL + "/admin/status")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	last, ok := body["indexer_status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(12), last["files_seen"])
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t, "")
	resp, err := http.Post(ts.URL+"/ingest", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// The gateway client and the server speak the same wire format; drive the
// real client against the real server end to end.
func TestGatewayClientAgainstServer(t *testing.T) {
	ts := newTestServer(t, "k")
	client := gateway.NewClientWithOptions(ts.URL, gateway.Options{AdminKey: "k"})
	ctx := context.Background()

	resp, err := client.Ingest(ctx, &gateway.IngestRequest{
		DocumentID:   "kb/a.txt",
		DocHash:      "h1",
		LastModified: time.Now().UTC().Format(time.RFC3339),
		Chunks:       chunksForClient("kb/a.txt", "gateway round trip content"),
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusIndexed, resp.Status)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Documents)

	hits, err := client.Query(ctx, "round trip", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits.Results)
	assert.Equal(t, "kb/a.txt", hits.Results[0].DocumentID)

	del, err := client.DeleteDocument(ctx, "kb/a.txt")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusDeleted, del.Status)

	require.NoError(t, client.Health(ctx))

	_, found, err := client.LastRun(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	pushed := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, client.ReportStatus(ctx, &gateway.RunReport{LastRun: pushed, FilesSeen: 1}))

	last, found, err := client.LastRun(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, pushed, last.LastRun)
	assert.Equal(t, 1, last.FilesSeen)
}
