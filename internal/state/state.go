// Package state tracks what the synchronization engine believes is already
// stored remotely: one record per logical document, holding the content
// fingerprint and modification timestamp persisted after the last successful
// ingest. Content fingerprints are the only change-detection signal;
// timestamps are metadata and never consulted by classification.
package state

import (
	"sort"
	"strings"
)

// DocState is the persisted record for one logical document.
type DocState struct {
	// Hash is the content fingerprint at last successful ingest.
	Hash string `json:"doc_hash"`

	// LastModified is the file's modification time at last ingest,
	// RFC3339. Metadata only; classification never reads it.
	LastModified string `json:"last_modified"`
}

// State maps document identifiers to their last-ingested record.
type State map[string]DocState

// Classification is the outcome of comparing a document against prior state.
type Classification int

const (
	// Unchanged means the stored fingerprint matches the fresh one.
	Unchanged Classification = iota
	// NewOrModified means the document is absent from state or its
	// fingerprint differs.
	NewOrModified
)

// String returns the string representation of a Classification.
func (c Classification) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case NewOrModified:
		return "new_or_modified"
	default:
		return "unknown"
	}
}

// Classify compares a freshly computed fingerprint against prior state.
// A document is unchanged iff it exists in state with an equal fingerprint.
// Timestamps are deliberately ignored: filesystem clocks are untrustworthy
// across mounts, so only content identity governs re-ingestion.
func Classify(st State, docID, digest string) Classification {
	if prev, ok := st[docID]; ok && prev.Hash == digest {
		return Unchanged
	}
	return NewOrModified
}

// IDs returns every document identifier known to the state, sorted.
func (st State) IDs() []string {
	ids := make([]string, 0, len(st))
	for id := range st {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Labels returns the set of root labels present in the state.
// A document identifier is "{root_label}/{relative_path}".
func (st State) Labels() map[string]bool {
	labels := make(map[string]bool)
	for id := range st {
		if i := strings.IndexByte(id, '/'); i > 0 {
			labels[id[:i]] = true
		}
	}
	return labels
}

// Clone returns a deep copy of the state.
func (st State) Clone() State {
	out := make(State, len(st))
	for id, ds := range st {
		out[id] = ds
	}
	return out
}
