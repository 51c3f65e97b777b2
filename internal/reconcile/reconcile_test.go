package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tliops/kbsync/internal/errors"
	"github.com/tliops/kbsync/internal/gateway"
	"github.com/tliops/kbsync/internal/scan"
	"github.com/tliops/kbsync/internal/state"
)

// fakeStore is an in-memory stand-in for the store service, recording
// every call the reconciler makes.
type fakeStore struct {
	mu        sync.Mutex
	docs      map[string]string // document_id -> doc_hash
	ingests   []string
	deletes   []string
	reports   []*gateway.RunReport
	statusErr error
	ingestErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:      make(map[string]string),
		ingestErr: make(map[string]error),
	}
}

func (f *fakeStore) Ingest(_ context.Context, req *gateway.IngestRequest) (*gateway.IngestResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ingestErr[req.DocumentID]; err != nil {
		return nil, err
	}
	f.ingests = append(f.ingests, req.DocumentID)
	if f.docs[req.DocumentID] == req.DocHash {
		return &gateway.IngestResponse{Status: gateway.StatusSkippedUnchanged, DocumentID: req.DocumentID}, nil
	}
	f.docs[req.DocumentID] = req.DocHash
	return &gateway.IngestResponse{
		Status:        gateway.StatusIndexed,
		DocumentID:    req.DocumentID,
		ChunksIndexed: len(req.Chunks),
	}, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, documentID string) (*gateway.DeleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, documentID)
	if _, ok := f.docs[documentID]; !ok {
		return &gateway.DeleteResponse{Status: gateway.StatusNotFound, DocumentID: documentID}, nil
	}
	delete(f.docs, documentID)
	return &gateway.DeleteResponse{Status: gateway.StatusDeleted, DocumentID: documentID}, nil
}

func (f *fakeStore) Status(_ context.Context) (*gateway.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &gateway.StatusResponse{Documents: len(f.docs)}, nil
}

func (f *fakeStore) ReportStatus(_ context.Context, report *gateway.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeStore) ingestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingests)
}

func (f *fakeStore) has(documentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[documentID]
	return ok
}

type harness struct {
	rootDir string
	root    scan.Root
	store   *fakeStore
	states  *state.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	rootDir := filepath.Join(dir, "kb")
	require.NoError(t, os.MkdirAll(rootDir, 0o755))
	return &harness{
		rootDir: rootDir,
		root:    scan.NewRoot(rootDir),
		store:   newFakeStore(),
		states:  state.NewStore(filepath.Join(dir, "kb_state.json")),
	}
}

func (h *harness) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(h.rootDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *harness) run(t *testing.T, opts ...func(*Options)) *Report {
	t.Helper()
	options := Options{Roots: []scan.Root{h.root}, Workers: 2}
	for _, o := range opts {
		o(&options)
	}
	report, err := NewReconciler(h.store, h.states, options).Run(context.Background())
	require.NoError(t, err)
	return report
}

func TestFirstRunIndexesEverything(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.write(t, "b.txt", "beta content")

	report := h.run(t)

	assert.Equal(t, 2, report.FilesSeen)
	assert.Equal(t, 2, report.DocsIndexed)
	assert.Equal(t, 0, report.DocsDeleted)
	assert.True(t, h.store.has("kb/a.txt"))
	assert.True(t, h.store.has("kb/b.txt"))

	st := h.states.Load()
	assert.Len(t, st, 2)
	for docID, ds := range st {
		assert.NotEmpty(t, ds.Hash, docID)
		_, err := time.Parse(time.RFC3339, ds.LastModified)
		assert.NoError(t, err, docID)
	}
}

func TestSecondRunIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.write(t, "b.txt", "beta content")

	h.run(t)
	before := h.store.ingestCount()

	report := h.run(t)

	assert.Equal(t, before, h.store.ingestCount(), "unchanged files must not be re-sent")
	assert.Equal(t, 0, report.DocsIndexed)
	assert.Equal(t, 2, report.DocsUnchanged)
	assert.Equal(t, 0, report.DocsDeleted)
}

func TestContentChangeReindexesOnlyThatFile(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.write(t, "b.txt", "beta content")
	h.run(t)
	before := h.store.ingestCount()

	h.write(t, "b.txt", "beta content revised")
	report := h.run(t)

	assert.Equal(t, 1, report.DocsIndexed)
	assert.Equal(t, 1, report.DocsUnchanged)
	require.Equal(t, before+1, h.store.ingestCount())
	assert.Equal(t, "kb/b.txt", h.store.ingests[len(h.store.ingests)-1])
}

func TestRewriteWithSameContentIsUnchanged(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "stable content")
	h.run(t)
	before := h.store.ingestCount()

	// Rewriting bumps the modification time but not the hash.
	h.write(t, "a.txt", "stable content")
	report := h.run(t)

	assert.Equal(t, before, h.store.ingestCount())
	assert.Equal(t, 1, report.DocsUnchanged)
}

func TestDeletionReconciliation(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.write(t, "b.txt", "beta content")
	h.run(t)

	require.NoError(t, os.Remove(filepath.Join(h.rootDir, "b.txt")))
	report := h.run(t)

	assert.Equal(t, 1, report.Vanished)
	assert.Equal(t, 1, report.DocsDeleted)
	assert.False(t, h.store.has("kb/b.txt"))
	assert.True(t, h.store.has("kb/a.txt"))

	st := h.states.Load()
	assert.Len(t, st, 1)
	_, ok := st["kb/a.txt"]
	assert.True(t, ok)
}

func TestRootRemovalGuardVetoesDeletions(t *testing.T) {
	dir := t.TempDir()
	rootA := filepath.Join(dir, "policies")
	rootB := filepath.Join(dir, "runbooks")
	require.NoError(t, os.MkdirAll(rootA, 0o755))
	require.NoError(t, os.MkdirAll(rootB, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "p.txt"), []byte("policy"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rootB, "r.txt"), []byte("runbook"), 0o644))

	store := newFakeStore()
	states := state.NewStore(filepath.Join(dir, "kb_state.json"))

	both := Options{Roots: scan.NewRoots([]string{rootA, rootB}), Workers: 1}
	_, err := NewReconciler(store, states, both).Run(context.Background())
	require.NoError(t, err)
	require.True(t, store.has("runbooks/r.txt"))

	// Same filesystem, one root dropped from config.
	one := Options{Roots: scan.NewRoots([]string{rootA}), Workers: 1}
	report, err := NewReconciler(store, states, one).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.GuardVeto)
	assert.Equal(t, 1, report.Vanished, "the veto still reports how many documents vanished")
	assert.Equal(t, 0, report.DocsDeleted)
	assert.Empty(t, store.deletes)
	assert.True(t, store.has("runbooks/r.txt"), "vetoed deletions must not reach the store")

	st := states.Load()
	_, ok := st["runbooks/r.txt"]
	assert.True(t, ok, "state keeps vanished entries after a veto")

	// With the override the same run deletes the orphaned root.
	one.AllowRootRemoval = true
	report, err = NewReconciler(store, states, one).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DocsDeleted)
	assert.False(t, store.has("runbooks/r.txt"))
}

func TestMountGuardAbortsRun(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha")
	h.run(t)

	missing := Options{Roots: []scan.Root{scan.NewRoot(filepath.Join(h.rootDir, "gone"))}, Workers: 1}
	report, err := NewReconciler(h.store, h.states, missing).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMountUnhealthy, errors.GetCode(err))
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, h.store.deletes, "aborted run must never delete")

	st := h.states.Load()
	assert.Len(t, st, 1, "aborted run must not touch the state")
}

func TestEmptyRootVetoesRun(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha")
	h.run(t)

	require.NoError(t, os.Remove(filepath.Join(h.rootDir, "a.txt")))
	_, err := NewReconciler(h.store, h.states,
		Options{Roots: []scan.Root{h.root}, Workers: 1}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMountUnhealthy, errors.GetCode(err))
	assert.True(t, h.store.has("kb/a.txt"))
}

func TestStateResetWhenStoreEmpty(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.run(t)
	require.True(t, h.store.has("kb/a.txt"))

	// Simulate a store rebuild: contents gone, local state intact.
	h.store.mu.Lock()
	h.store.docs = map[string]string{}
	h.store.mu.Unlock()

	report := h.run(t)

	assert.Equal(t, 1, report.DocsIndexed, "empty store with stale state forces a reindex")
	assert.True(t, h.store.has("kb/a.txt"))
}

func TestStatusProbeFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.run(t)
	before := h.store.ingestCount()

	h.store.mu.Lock()
	h.store.statusErr = fmt.Errorf("probe down")
	h.store.mu.Unlock()

	report := h.run(t)

	assert.Equal(t, before, h.store.ingestCount(), "probe failure must not trigger a reindex")
	assert.Equal(t, 1, report.DocsUnchanged)
}

func TestIngestFailureRetriedNextRun(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.write(t, "b.txt", "beta content")
	h.store.ingestErr["kb/b.txt"] = errors.New(errors.ErrCodeStoreRejected, "schema mismatch", nil)

	report, err := NewReconciler(h.store, h.states,
		Options{Roots: []scan.Root{h.root}, Workers: 1}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexFailed, errors.GetCode(err))
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 1, report.DocsIndexed)

	st := h.states.Load()
	_, ok := st["kb/b.txt"]
	assert.False(t, ok, "failed ingest must not be recorded as synced")

	// Store recovers; the next run picks the file up again.
	h.store.mu.Lock()
	delete(h.store.ingestErr, "kb/b.txt")
	h.store.mu.Unlock()

	report = h.run(t)
	assert.Equal(t, 1, report.DocsIndexed)
	assert.True(t, h.store.has("kb/b.txt"))
}

func TestFileWithNoContentIsSeenButNotIngested(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.write(t, "blank.txt", "   \n\n  ")

	report := h.run(t)

	assert.Equal(t, 1, report.DocsIndexed)
	assert.Equal(t, 1, report.DocsEmpty)
	assert.False(t, h.store.has("kb/blank.txt"))

	// Without a store ack the blank file never enters the state.
	st := h.states.Load()
	_, tracked := st["kb/blank.txt"]
	assert.False(t, tracked)

	// The seen set still keeps it out of the deletion pass, and it is
	// re-examined every run.
	report = h.run(t)
	assert.Equal(t, 0, report.DocsDeleted)
	assert.Equal(t, 1, report.DocsEmpty)
	assert.Empty(t, h.store.deletes)
}

func TestUnparseableFileTreatedAsEmpty(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.write(t, "broken.pdf", "this is not a pdf")

	report := h.run(t)

	assert.Equal(t, 1, report.DocsIndexed)
	assert.Equal(t, 1, report.DocsEmpty)
	assert.Equal(t, 0, report.Failures)
	assert.False(t, h.store.has("kb/broken.pdf"))

	// An unparseable file stays out of the state, so it is re-examined
	// every run but never deleted.
	report = h.run(t)
	assert.Equal(t, 1, report.DocsEmpty)
	assert.Equal(t, 1, report.DocsUnchanged)
	assert.Empty(t, h.store.deletes)
}

func TestStoreSkipCountsAsUnchanged(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")
	h.run(t)

	// Drop the local state while the store still has the document. The
	// file looks new locally, but the store short-circuits on the hash.
	require.NoError(t, os.Remove(h.states.Path()))

	report := h.run(t)
	assert.Equal(t, 0, report.DocsIndexed)
	assert.Equal(t, 1, report.DocsUnchanged)
}

func TestRunReportPushed(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "alpha content")

	h.write(t, "b.txt", "beta content")
	h.run(t)
	require.NoError(t, os.Remove(filepath.Join(h.rootDir, "b.txt")))
	h.run(t)

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	require.Len(t, h.store.reports, 2)
	first := h.store.reports[0]
	assert.Equal(t, []string{"kb"}, first.Roots)
	assert.Equal(t, 2, first.FilesSeen)
	assert.Equal(t, 2, first.DocsIndexed)
	assert.False(t, first.LastRun.IsZero())

	second := h.store.reports[1]
	assert.Equal(t, 1, second.Vanished)
	assert.Equal(t, 1, second.DocsDeleted)
}
