// Package scan discovers candidate files under configured source roots.
// It streams results over a channel so callers consume a lazy sequence of
// candidates rather than wiring callbacks into the directory walk.
package scan

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxFileSize is the default maximum file size to consider (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// hiddenPrefix marks hidden files and directories.
const hiddenPrefix = "."

// Root is a labeled filesystem subtree to scan. The label is derived from
// the final path segment and prefixes every document identifier under it.
type Root struct {
	Label string
	Path  string
}

// NewRoot builds a Root from an absolute path.
func NewRoot(path string) Root {
	trimmed := strings.TrimRight(path, "/")
	return Root{
		Label: filepath.Base(trimmed),
		Path:  trimmed,
	}
}

// NewRoots builds roots for a list of paths.
func NewRoots(paths []string) []Root {
	roots := make([]Root, 0, len(paths))
	for _, p := range paths {
		roots = append(roots, NewRoot(p))
	}
	return roots
}

// Labels returns the set of labels for the given roots.
func Labels(roots []Root) map[string]bool {
	labels := make(map[string]bool, len(roots))
	for _, r := range roots {
		labels[r.Label] = true
	}
	return labels
}

// FileInfo describes one discovered candidate file.
type FileInfo struct {
	// Root is the source root the file was found under.
	Root Root

	// RelPath is the path relative to the root, forward-slash separated.
	RelPath string

	// AbsPath is the absolute path on disk.
	AbsPath string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time in UTC.
	ModTime time.Time

	// Ext is the lower-cased extension including the leading dot.
	Ext string
}

// DocumentID returns the file's logical document identifier:
// "{root_label}/{relative path}". It is the join key between on-disk
// reality and remote store content.
func (f FileInfo) DocumentID() string {
	return DocumentID(f.Root.Label, f.RelPath)
}

// DocumentID derives a document identifier from a root label and a
// slash-separated relative path.
func DocumentID(label, relPath string) string {
	return label + "/" + relPath
}

// Result is one item streamed from a scan.
type Result struct {
	File *FileInfo
	Err  error
}

// Options configures scanner behavior.
type Options struct {
	// Extensions restricts results to the given lower-cased extensions
	// (including dot). Nil means all extensions are eligible.
	Extensions map[string]bool

	// MaxFileSize is the maximum file size in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, hiddenPrefix)
}
