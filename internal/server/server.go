// Package server exposes the store over HTTP. The surface mirrors what
// the sync engine's gateway client speaks: ingest, delete, query, and the
// admin status endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tliops/kbsync/internal/chunk"
	"github.com/tliops/kbsync/internal/store"
)

const (
	adminKeyHeader = "X-Admin-Key"
	maxBodyBytes   = 32 << 20
	staleAfter     = 10 * time.Minute
)

// Server is the kbstore HTTP server.
type Server struct {
	service    *store.Service
	adminKey   string
	collection string
	http       *http.Server
}

// Options configures the server.
type Options struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string
	// AdminKey protects mutating endpoints. Empty disables the check, a
	// permissive default intended for local development.
	AdminKey string
	// Collection names the chunk collection reported by /admin/status.
	Collection string
}

// New creates a server around the store service.
func New(service *store.Service, options Options) *Server {
	s := &Server{service: service, adminKey: options.AdminKey, collection: options.Collection}
	s.http = &http.Server{
		Addr:         options.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest", s.requireAdmin(s.handleIngest))
	mux.HandleFunc("POST /delete_document", s.requireAdmin(s.handleDelete))
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /admin/status", s.requireAdmin(s.handleStatus))
	mux.HandleFunc("POST /admin/indexer_status", s.requireAdmin(s.handleReportRun))
	mux.HandleFunc("GET /admin/indexer_status", s.requireAdmin(s.handleLastRun))
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("store service listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

// requireAdmin rejects requests whose admin key does not match. With no
// key configured every request passes.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey != "" && r.Header.Get(adminKeyHeader) != s.adminKey {
			writeError(w, http.StatusUnauthorized, "invalid admin key")
			return
		}
		next(w, r)
	}
}

type ingestRequest struct {
	DocumentID   string        `json:"document_id"`
	DocHash      string        `json:"doc_hash"`
	LastModified string        `json:"last_modified"`
	Chunks       []chunk.Chunk `json:"chunks"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	if len(req.Chunks) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "no_chunks",
			"document_id": req.DocumentID,
		})
		return
	}

	outcome, err := s.service.Ingest(r.Context(), req.DocumentID, req.DocHash, req.LastModified, req.Chunks)
	if err != nil {
		slog.Error("ingest failed", "document_id", req.DocumentID, "error", err)
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}

	status := "indexed"
	if outcome.Skipped {
		status = "skipped_unchanged"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"document_id":    req.DocumentID,
		"version":        outcome.Version,
		"chunks_indexed": outcome.ChunksIndexed,
	})
}

type deleteRequest struct {
	DocumentID string `json:"document_id"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	removed, found, err := s.service.Delete(r.Context(), req.DocumentID)
	if err != nil {
		slog.Error("delete failed", "document_id", req.DocumentID, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	status := "deleted"
	if !found {
		status = "not_found"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"document_id":    req.DocumentID,
		"chunks_removed": removed,
	})
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}

	results, err := s.service.Query(r.Context(), req.Query, req.TopK)
	if err != nil {
		slog.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docs, chunks, err := s.service.Counts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status failed")
		return
	}
	payload := map[string]any{
		"documents":  docs,
		"chunks":     chunks,
		"collection": s.collection,
	}
	if raw, found, err := s.service.RunReport(); err == nil && found {
		payload["indexer_status"] = json.RawMessage(raw)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReportRun(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if !decode(w, r, &payload) {
		return
	}
	if err := s.service.PutRunReport(payload); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store run report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	raw, found, err := s.service.RunReport()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read run report")
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"status": "no_runs"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hb := s.service.Heartbeat()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"last_heartbeat": hb.Last().Format(time.RFC3339),
		"fresh":          hb.FreshWithin(staleAfter),
	})
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
