package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/tliops/kbsync/internal/chunk"
)

// Index wraps a Bleve index holding one entry per chunk. Document
// replacement is delete-then-index under a single lock, so readers never
// observe a half-replaced document.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// chunkEntry is the indexed shape of one chunk.
type chunkEntry struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Source     string `json:"source"`
	Path       string `json:"path"`
}

// NewIndex opens or creates the index at path. An empty path creates an
// in-memory index. A corrupt on-disk index is cleared and recreated; the
// sync engine detects the resulting empty store and reindexes.
func NewIndex(path string) (*Index, error) {
	indexMapping := createIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("index corrupted, clearing",
				"path", path, "error", validErr)
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w", path, removeErr)
			}
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("index open failed, recreating", "path", path, "error", err)
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("index corrupted, cannot clear: %w", removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return &Index{index: idx, path: path}, nil
}

func createIndexMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()
	textField.Store = true

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true

	storedField := bleve.NewTextFieldMapping()
	storedField.Store = true
	storedField.Index = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("document_id", idField)
	docMapping.AddFieldMappingsAt("source", storedField)
	docMapping.AddFieldMappingsAt("path", storedField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// validateIndexIntegrity inspects the index metadata before opening.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Replace swaps the document's chunk set: existing chunks are removed and
// the new ones indexed in one batch.
func (x *Index) Replace(ctx context.Context, documentID string, chunks []chunk.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return fmt.Errorf("index is closed")
	}

	existing, err := x.chunkIDsLocked(ctx, documentID)
	if err != nil {
		return err
	}

	batch := x.index.NewBatch()
	for _, id := range existing {
		batch.Delete(id)
	}
	for _, c := range chunks {
		entry := chunkEntry{
			DocumentID: documentID,
			Text:       c.Text,
			Source:     c.Metadata.Source,
			Path:       c.Metadata.Path,
		}
		if err := batch.Index(c.ID, entry); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Remove deletes every chunk of the document and returns how many were
// removed.
func (x *Index) Remove(ctx context.Context, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return 0, fmt.Errorf("index is closed")
	}

	ids, err := x.chunkIDsLocked(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	batch := x.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := x.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return len(ids), nil
}

func (x *Index) chunkIDsLocked(ctx context.Context, documentID string) ([]string, error) {
	query := bleve.NewTermQuery(documentID)
	query.SetField("document_id")

	var ids []string
	from := 0
	for {
		req := bleve.NewSearchRequestOptions(query, 1000, from, false)
		result, err := x.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("chunk lookup failed: %w", err)
		}
		for _, hit := range result.Hits {
			ids = append(ids, hit.ID)
		}
		if len(ids) >= int(result.Total) || len(result.Hits) == 0 {
			return ids, nil
		}
		from += len(result.Hits)
	}
}

// Search returns the top chunks matching the query text.
func (x *Index) Search(ctx context.Context, queryStr string, limit int) ([]SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []SearchResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("text")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.Fields = []string{"document_id", "text", "source"}

	result, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, SearchResult{
			ChunkID:    hit.ID,
			DocumentID: fieldString(hit.Fields, "document_id"),
			Text:       fieldString(hit.Fields, "text"),
			Source:     fieldString(hit.Fields, "source"),
			Score:      hit.Score,
		})
	}
	return results, nil
}

func fieldString(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// ChunkCount returns the number of indexed chunks.
func (x *Index) ChunkCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return x.index.DocCount()
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.index.Close()
}
