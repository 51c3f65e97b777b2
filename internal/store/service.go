package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tliops/kbsync/internal/chunk"
)

// Service ties the index, catalog, cache, and heartbeat together and
// implements the store's ingest and query semantics.
type Service struct {
	index     *Index
	catalog   *Catalog
	cache     *QueryCache
	heartbeat *Heartbeat
}

// NewService opens a store rooted at dataDir. An empty dataDir builds an
// in-memory store for tests.
func NewService(dataDir string) (*Service, error) {
	indexPath := ""
	catalogPath := ""
	if dataDir != "" {
		indexPath = filepath.Join(dataDir, "chunks.bleve")
		catalogPath = filepath.Join(dataDir, "catalog.db")
	}

	index, err := NewIndex(indexPath)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalog(catalogPath)
	if err != nil {
		index.Close()
		return nil, err
	}
	cache, err := NewQueryCache()
	if err != nil {
		index.Close()
		catalog.Close()
		return nil, err
	}
	return &Service{
		index:     index,
		catalog:   catalog,
		cache:     cache,
		heartbeat: NewHeartbeat(),
	}, nil
}

// Heartbeat returns the service heartbeat.
func (s *Service) Heartbeat() *Heartbeat {
	return s.heartbeat
}

// Ingest replaces the document's chunk set. When docHash matches the
// catalog the call is a no-op that reports Skipped and keeps the current
// version; otherwise the chunks are reindexed and the version increments.
func (s *Service) Ingest(ctx context.Context, documentID, docHash, lastModified string, chunks []chunk.Chunk) (IngestOutcome, error) {
	if documentID == "" {
		return IngestOutcome{}, fmt.Errorf("document_id must not be empty")
	}

	entry, found, err := s.catalog.Get(documentID)
	if err != nil {
		return IngestOutcome{}, err
	}
	if found && docHash != "" && entry.DocHash == docHash {
		s.heartbeat.Beat()
		return IngestOutcome{Skipped: true, Version: entry.Version}, nil
	}

	if err := s.index.Replace(ctx, documentID, chunks); err != nil {
		return IngestOutcome{}, err
	}

	version := 1
	if found {
		version = entry.Version + 1
	}
	if err := s.catalog.Put(CatalogEntry{
		DocumentID:   documentID,
		DocHash:      docHash,
		LastModified: lastModified,
		Version:      version,
		ChunkCount:   len(chunks),
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		return IngestOutcome{}, err
	}

	s.cache.Invalidate()
	s.heartbeat.Beat()
	slog.Info("document ingested",
		"document_id", documentID, "version", version, "chunks", len(chunks))
	return IngestOutcome{Version: version, ChunksIndexed: len(chunks)}, nil
}

// Delete removes the document and its chunks. An unknown document is a
// no-op reporting found=false.
func (s *Service) Delete(ctx context.Context, documentID string) (removed int, found bool, err error) {
	_, found, err = s.catalog.Get(documentID)
	if err != nil {
		return 0, false, err
	}
	removed, err = s.index.Remove(ctx, documentID)
	if err != nil {
		return 0, false, err
	}
	if err := s.catalog.Delete(documentID); err != nil {
		return 0, false, err
	}
	if found || removed > 0 {
		s.cache.Invalidate()
	}
	s.heartbeat.Beat()
	return removed, found, nil
}

// Query searches chunks, serving repeated queries from the cache.
func (s *Service) Query(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if results, ok := s.cache.Get(query, limit); ok {
		return results, nil
	}
	results, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Add(query, limit, results)
	s.heartbeat.Beat()
	return results, nil
}

// Counts returns the document and chunk totals from the catalog.
func (s *Service) Counts() (docs int, chunks int, err error) {
	return s.catalog.Counts()
}

// PutRunReport stores the sync engine's latest run report.
func (s *Service) PutRunReport(payload any) error {
	s.heartbeat.Beat()
	return s.catalog.PutRunReport(payload)
}

// RunReport returns the latest stored run report.
func (s *Service) RunReport() (json.RawMessage, bool, error) {
	return s.catalog.RunReport()
}

// Close releases index and catalog.
func (s *Service) Close() error {
	ierr := s.index.Close()
	cerr := s.catalog.Close()
	if ierr != nil {
		return ierr
	}
	return cerr
}
