// Package store is the persistence backend of the kbstore service: a
// Bleve full-text index for chunk search plus a SQLite catalog holding
// per-document hashes and versions. The catalog is what lets ingest
// short-circuit on an unchanged doc_hash without touching the index.
package store

import "time"

// CatalogEntry is one document's bookkeeping record.
type CatalogEntry struct {
	DocumentID   string    `json:"document_id"`
	DocHash      string    `json:"doc_hash"`
	LastModified string    `json:"last_modified"`
	Version      int       `json:"version"`
	ChunkCount   int       `json:"chunk_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SearchResult is one chunk hit from a query.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

// IngestOutcome reports what Ingest did.
type IngestOutcome struct {
	// Skipped is true when doc_hash matched and nothing was reindexed.
	Skipped bool
	// Version is the document's version after the call.
	Version int
	// ChunksIndexed is the number of chunks written to the index.
	ChunksIndexed int
}
