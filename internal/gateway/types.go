// Package gateway is the HTTP client for the document store service. The
// sync engine never talks to an index directly; everything goes through
// this contract so the store implementation can change underneath it.
package gateway

import (
	"time"

	"github.com/tliops/kbsync/internal/chunk"
)

// Ingest outcome statuses returned by the store.
const (
	StatusIndexed          = "indexed"
	StatusSkippedUnchanged = "skipped_unchanged"
	StatusNoChunks         = "no_chunks"
	StatusDeleted          = "deleted"
	StatusNotFound         = "not_found"
)

// IngestRequest replaces a document's chunk set in the store.
type IngestRequest struct {
	DocumentID   string        `json:"document_id"`
	DocHash      string        `json:"doc_hash"`
	LastModified string        `json:"last_modified"`
	Chunks       []chunk.Chunk `json:"chunks"`
}

// IngestResponse reports what the store did with an ingest.
type IngestResponse struct {
	Status        string `json:"status"`
	DocumentID    string `json:"document_id"`
	Version       int    `json:"version"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// Skipped reports whether the store short-circuited on an unchanged hash.
func (r *IngestResponse) Skipped() bool {
	return r.Status == StatusSkippedUnchanged
}

// QueryRequest asks the store for the top matches of a text query.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// QueryResult is one scored chunk match.
type QueryResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

// QueryResponse carries the scored matches for a query.
type QueryResponse struct {
	Query   string        `json:"query"`
	Results []QueryResult `json:"results"`
}

// DeleteRequest removes a document and all its chunks.
type DeleteRequest struct {
	DocumentID string `json:"document_id"`
}

// DeleteResponse reports the outcome of a delete.
type DeleteResponse struct {
	Status        string `json:"status"`
	DocumentID    string `json:"document_id"`
	ChunksRemoved int    `json:"chunks_removed"`
}

// StatusResponse summarizes store contents.
type StatusResponse struct {
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Collection string `json:"collection"`
}

// RunReport is the end-of-run summary pushed to the store for operator
// visibility.
type RunReport struct {
	LastRun     time.Time `json:"last_run"`
	LastError   string    `json:"last_error,omitempty"`
	Roots       []string  `json:"kb_roots"`
	FilesSeen   int       `json:"files_seen"`
	DocsIndexed int       `json:"docs_indexed"`
	Vanished    int       `json:"vanished"`
	DocsDeleted int       `json:"deleted_docs"`
}
