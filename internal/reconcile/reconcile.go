// Package reconcile drives one synchronization run: pre-flight guards,
// scan, classify, ingest, guarded deletion, and a single atomic state
// save. A run that aborts leaves the previous state untouched, so the
// worst outcome of any failure is redundant work on the next run.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tliops/kbsync/internal/chunk"
	"github.com/tliops/kbsync/internal/errors"
	"github.com/tliops/kbsync/internal/gateway"
	"github.com/tliops/kbsync/internal/guard"
	"github.com/tliops/kbsync/internal/reader"
	"github.com/tliops/kbsync/internal/scan"
	"github.com/tliops/kbsync/internal/state"
)

// Gateway is the store surface the reconciler needs.
type Gateway interface {
	Ingest(ctx context.Context, req *gateway.IngestRequest) (*gateway.IngestResponse, error)
	DeleteDocument(ctx context.Context, documentID string) (*gateway.DeleteResponse, error)
	Status(ctx context.Context) (*gateway.StatusResponse, error)
	ReportStatus(ctx context.Context, report *gateway.RunReport) error
}

// Options configures a Reconciler.
type Options struct {
	// Roots are the labeled source trees to sync.
	Roots []scan.Root

	// AllowRootRemoval permits the deletion pass to proceed when a root
	// known to the state is missing from Roots.
	AllowRootRemoval bool

	// RequireMountCheck demands each root is a mount point in pre-flight.
	RequireMountCheck bool

	// MaxFileSize caps scanned file sizes in bytes (0 = scanner default).
	MaxFileSize int64

	// Workers is the ingest concurrency (0 = 1).
	Workers int

	// ChunkMaxChars caps chunk sizes (0 = chunk default).
	ChunkMaxChars int

	// Retry tunes retries on transient store failures.
	Retry errors.RetryConfig
}

// Reconciler executes sync runs against a store through the gateway.
type Reconciler struct {
	gw       Gateway
	states   *state.Store
	splitter *chunk.Splitter
	options  Options
}

// NewReconciler creates a reconciler.
func NewReconciler(gw Gateway, states *state.Store, options Options) *Reconciler {
	if options.Workers <= 0 {
		options.Workers = 1
	}
	if options.Retry.MaxRetries == 0 && options.Retry.InitialDelay == 0 {
		options.Retry = errors.DefaultRetryConfig()
	}
	return &Reconciler{
		gw:       gw,
		states:   states,
		splitter: chunk.NewSplitterWithOptions(chunk.SplitterOptions{MaxChars: options.ChunkMaxChars}),
		options:  options,
	}
}

// Run executes one full synchronization pass. The returned Report is
// non-nil whenever a run started, even if it aborted; the error carries
// the reason for an abort.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	started := time.Now().UTC()
	report := &Report{Timestamp: started}
	for _, root := range r.options.Roots {
		report.Roots = append(report.Roots, root.Label)
	}

	if err := r.states.Acquire(); err != nil {
		return nil, err
	}
	defer r.states.Release()

	// Run-level guard: one unhealthy root aborts everything. A half
	// visible corpus must not feed the deletion pass.
	if err := r.checkMounts(); err != nil {
		report.Error = err.Error()
		r.report(ctx, report)
		return report, err
	}

	st := r.maybeResetState(ctx, r.states.Load())

	seen, ingestErr := r.syncFiles(ctx, st, report)
	if ingestErr != nil {
		// Run-level failure (cancellation). Per-file failures are
		// tallied in the report instead.
		report.Error = ingestErr.Error()
		r.report(ctx, report)
		return report, ingestErr
	}

	r.deleteVanished(ctx, st, seen, report)

	if err := r.states.Save(st); err != nil {
		report.Error = err.Error()
		return report, err
	}

	report.Duration = time.Since(started)
	r.report(ctx, report)

	slog.Info("sync run complete",
		"files_seen", report.FilesSeen,
		"docs_indexed", report.DocsIndexed,
		"docs_unchanged", report.DocsUnchanged,
		"docs_deleted", report.DocsDeleted,
		"failures", report.Failures,
		"duration", report.Duration)

	if report.Failures > 0 {
		return report, errors.New(errors.ErrCodeIndexFailed,
			fmt.Sprintf("%d documents failed to sync", report.Failures), nil)
	}
	return report, nil
}

func (r *Reconciler) checkMounts() error {
	for _, root := range r.options.Roots {
		checker := &guard.MountChecker{
			Path:              root.Path,
			Label:             root.Label,
			RequireMountpoint: r.options.RequireMountCheck,
		}
		if result := checker.Check(); !result.Passed() {
			return errors.GuardError(errors.ErrCodeMountUnhealthy, result.Message).
				WithSuggestion(result.Suggestion)
		}
	}
	return nil
}

// maybeResetState discards the local state when the store is empty but the
// state claims documents and the roots hold files. That combination means
// the store was rebuilt; keeping the state would classify everything as
// unchanged and leave the store empty forever.
func (r *Reconciler) maybeResetState(ctx context.Context, st state.State) state.State {
	if len(st) == 0 {
		return st
	}
	status, err := r.gw.Status(ctx)
	if err != nil {
		slog.Warn("store status probe failed, keeping local state", "error", err)
		return st
	}
	if status.Documents != 0 {
		return st
	}
	for _, root := range r.options.Roots {
		if scan.HasFiles(root.Path) {
			slog.Warn("store is empty but local state is not, forcing full reindex",
				"state_docs", len(st))
			return state.State{}
		}
	}
	return st
}

// syncFiles scans every root, classifies each file by content hash, and
// ingests what changed. It returns the set of document IDs seen on disk.
func (r *Reconciler) syncFiles(ctx context.Context, st state.State, report *Report) (map[string]bool, error) {
	scanner := scan.NewScannerWithOptions(scan.Options{
		Extensions:  reader.SupportedExtensions(),
		MaxFileSize: r.options.MaxFileSize,
	})

	var mu sync.Mutex
	seen := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.Workers)

	for _, root := range r.options.Roots {
		for result := range scanner.Scan(ctx, root) {
			if result.Err != nil {
				slog.Warn("scan failed", "root", root.Label, "error", result.Err)
				continue
			}
			file := result.File

			mu.Lock()
			report.FilesSeen++
			seen[file.DocumentID()] = true
			mu.Unlock()

			g.Go(func() error {
				outcome, err := r.syncFile(gctx, st, &mu, file)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					slog.Warn("document sync failed",
						"document_id", file.DocumentID(), "error", err)
					mu.Lock()
					report.Failures++
					report.LastError = err.Error()
					mu.Unlock()
					return nil
				}
				mu.Lock()
				switch outcome {
				case outcomeIndexed:
					report.DocsIndexed++
				case outcomeUnchanged, outcomeSkippedByStore:
					report.DocsUnchanged++
				case outcomeEmpty:
					report.DocsEmpty++
				}
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return seen, err
	}
	return seen, nil
}

type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeUnchanged
	outcomeSkippedByStore
	outcomeEmpty
)

// syncFile fingerprints one file and ingests it when the content hash
// differs from the recorded one. The state entry is updated only after
// the store acknowledged the ingest; a failure here means the file is
// retried on the next run.
func (r *Reconciler) syncFile(ctx context.Context, st state.State, mu *sync.Mutex, file *scan.FileInfo) (outcome, error) {
	docID := file.DocumentID()

	digest, err := state.FingerprintFile(file.AbsPath)
	if err != nil {
		return 0, errors.IOError(fmt.Sprintf("failed to hash %s", docID), err)
	}

	mu.Lock()
	cls := state.Classify(st, docID, digest)
	mu.Unlock()
	if cls == state.Unchanged {
		return outcomeUnchanged, nil
	}

	// The file is readable (it was just hashed), so an extraction error
	// here is a format problem. Format failures degrade to empty text:
	// nothing to index, not a run failure.
	text, err := reader.Extract(file.AbsPath)
	if err != nil {
		slog.Warn("content extraction failed, treating as empty",
			"document_id", docID, "error", err)
		text = ""
	}
	segments := r.splitter.Split(text)
	if len(segments) == 0 {
		// No extractable content; nothing to ingest. The seen set keeps
		// the file out of the deletion pass, and the state record only
		// ever moves on a store ack.
		return outcomeEmpty, nil
	}

	req := &gateway.IngestRequest{
		DocumentID:   docID,
		DocHash:      digest,
		LastModified: file.ModTime.Format(time.RFC3339),
		Chunks:       chunk.Build(docID, file.Root.Label, file.AbsPath, segments),
	}

	var resp *gateway.IngestResponse
	err = errors.Retry(ctx, r.options.Retry, func() error {
		var ierr error
		resp, ierr = r.gw.Ingest(ctx, req)
		return ierr
	})
	if err != nil {
		return 0, err
	}

	mu.Lock()
	st[docID] = state.DocState{Hash: digest, LastModified: req.LastModified}
	mu.Unlock()

	if resp.Skipped() {
		return outcomeSkippedByStore, nil
	}
	return outcomeIndexed, nil
}

// deleteVanished removes store documents whose files are gone, unless the
// root removal guard vetoes the pass.
func (r *Reconciler) deleteVanished(ctx context.Context, st state.State, seen map[string]bool, report *Report) {
	var vanished []string
	for _, docID := range st.IDs() {
		if !seen[docID] {
			vanished = append(vanished, docID)
		}
	}
	report.Vanished = len(vanished)
	if len(vanished) == 0 {
		return
	}

	checker := &guard.RootRemovalChecker{
		StateLabels:  st.Labels(),
		ConfigLabels: scan.Labels(r.options.Roots),
		AllowRemoval: r.options.AllowRootRemoval,
	}
	if result := checker.Check(); !result.Passed() {
		// Deletions are vetoed for this run; everything else stands. The
		// state keeps the vanished entries so a corrected config picks
		// them up again.
		report.GuardVeto = result.Message
		report.LastError = result.Message
		slog.Error("deletion pass vetoed",
			"reason", result.Message, "vanished", len(vanished))
		return
	}

	for _, docID := range vanished {
		resp, err := r.gw.DeleteDocument(ctx, docID)
		if err != nil {
			slog.Warn("delete failed, will retry next run",
				"document_id", docID, "error", err)
			report.Failures++
			report.LastError = err.Error()
			continue
		}
		delete(st, docID)
		if resp.Status == gateway.StatusDeleted {
			report.DocsDeleted++
		}
		slog.Info("document removed", "document_id", docID, "status", resp.Status)
	}
}

func (r *Reconciler) report(ctx context.Context, report *Report) {
	runReport := &gateway.RunReport{
		LastRun:     report.Timestamp,
		LastError:   report.errorString(),
		Roots:       report.Roots,
		FilesSeen:   report.FilesSeen,
		DocsIndexed: report.DocsIndexed,
		Vanished:    report.Vanished,
		DocsDeleted: report.DocsDeleted,
	}
	if err := r.gw.ReportStatus(ctx, runReport); err != nil {
		slog.Warn("failed to report run status", "error", err)
	}
}
