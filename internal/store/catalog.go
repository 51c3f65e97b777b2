package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Catalog is the SQLite document catalog. It records each document's
// hash, version, and chunk count, and stores the most recent sync run
// report for the admin endpoints.
type Catalog struct {
	db *sql.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS documents (
	document_id   TEXT PRIMARY KEY,
	doc_hash      TEXT NOT NULL,
	last_modified TEXT NOT NULL DEFAULT '',
	version       INTEGER NOT NULL DEFAULT 1,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_runs (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	payload TEXT NOT NULL
);
`

// NewCatalog opens or creates the catalog database at path. An empty
// path creates an in-memory catalog.
func NewCatalog(path string) (*Catalog, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// table-locked errors under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Get returns the entry for documentID, or found=false.
func (c *Catalog) Get(documentID string) (CatalogEntry, bool, error) {
	var entry CatalogEntry
	var updatedAt string
	err := c.db.QueryRow(`
		SELECT document_id, doc_hash, last_modified, version, chunk_count, updated_at
		FROM documents WHERE document_id = ?`, documentID).
		Scan(&entry.DocumentID, &entry.DocHash, &entry.LastModified,
			&entry.Version, &entry.ChunkCount, &updatedAt)
	if err == sql.ErrNoRows {
		return CatalogEntry{}, false, nil
	}
	if err != nil {
		return CatalogEntry{}, false, fmt.Errorf("catalog lookup failed: %w", err)
	}
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return entry, true, nil
}

// Put inserts or replaces the entry.
func (c *Catalog) Put(entry CatalogEntry) error {
	_, err := c.db.Exec(`
		INSERT INTO documents (document_id, doc_hash, last_modified, version, chunk_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			doc_hash = excluded.doc_hash,
			last_modified = excluded.last_modified,
			version = excluded.version,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at`,
		entry.DocumentID, entry.DocHash, entry.LastModified,
		entry.Version, entry.ChunkCount, entry.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("catalog write failed: %w", err)
	}
	return nil
}

// Delete removes the entry. Deleting an unknown document is a no-op.
func (c *Catalog) Delete(documentID string) error {
	if _, err := c.db.Exec(`DELETE FROM documents WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("catalog delete failed: %w", err)
	}
	return nil
}

// Counts returns the number of documents and the sum of their chunk
// counts.
func (c *Catalog) Counts() (docs int, chunks int, err error) {
	err = c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(chunk_count), 0) FROM documents`).
		Scan(&docs, &chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("catalog count failed: %w", err)
	}
	return docs, chunks, nil
}

// PutRunReport stores the latest sync run report, replacing the previous
// one.
func (c *Catalog) PutRunReport(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT INTO sync_runs (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, string(data))
	if err != nil {
		return fmt.Errorf("failed to store run report: %w", err)
	}
	return nil
}

// RunReport returns the latest sync run report as raw JSON, or found=false
// when no run has reported yet.
func (c *Catalog) RunReport() (json.RawMessage, bool, error) {
	var payload string
	err := c.db.QueryRow(`SELECT payload FROM sync_runs WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read run report: %w", err)
	}
	return json.RawMessage(payload), true, nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
