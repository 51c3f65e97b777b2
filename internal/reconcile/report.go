package reconcile

import "time"

// Report summarizes one sync run.
type Report struct {
	// Timestamp is when the run started, UTC.
	Timestamp time.Time `json:"timestamp"`

	// Roots are the labels of the configured roots.
	Roots []string `json:"roots"`

	// FilesSeen counts candidate files found on disk.
	FilesSeen int `json:"files_seen"`

	// DocsIndexed counts documents the store actually (re)indexed.
	DocsIndexed int `json:"docs_indexed"`

	// DocsUnchanged counts documents skipped by hash, locally or by the
	// store's own short-circuit.
	DocsUnchanged int `json:"docs_unchanged"`

	// DocsEmpty counts files that yielded no extractable content.
	DocsEmpty int `json:"docs_empty"`

	// Vanished counts tracked documents whose files were gone this run,
	// whether or not the deletion pass was allowed to act on them.
	Vanished int `json:"vanished"`

	// DocsDeleted counts documents removed from the store.
	DocsDeleted int `json:"docs_deleted"`

	// Failures counts documents that failed to ingest or delete.
	Failures int `json:"failures"`

	// GuardVeto is set when the root removal guard blocked the deletion
	// pass.
	GuardVeto string `json:"guard_veto,omitempty"`

	// Error is set when the run itself aborted.
	Error string `json:"error,omitempty"`

	// LastError is the most recent per-document error, if any.
	LastError string `json:"last_error,omitempty"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`
}

// errorString returns the most relevant error for operator reporting.
func (r *Report) errorString() string {
	if r.Error != "" {
		return r.Error
	}
	return r.LastError
}

// Clean reports whether the run completed without failures or vetoes.
func (r *Report) Clean() bool {
	return r.Error == "" && r.LastError == "" && r.GuardVeto == "" && r.Failures == 0
}
