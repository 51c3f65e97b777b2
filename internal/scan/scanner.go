package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Scanner walks source roots and streams candidate files.
type Scanner struct {
	options Options
}

// NewScanner creates a scanner with default options.
func NewScanner() *Scanner {
	return NewScannerWithOptions(Options{})
}

// NewScannerWithOptions creates a scanner with the given options.
func NewScannerWithOptions(options Options) *Scanner {
	if options.MaxFileSize <= 0 {
		options.MaxFileSize = DefaultMaxFileSize
	}
	return &Scanner{options: options}
}

// Scan walks the root, sending results to the returned channel. The channel
// is closed when the walk finishes or ctx is cancelled. A missing or
// non-directory root yields zero results; it is logged, never fatal, so a
// temporarily absent root costs nothing until it reappears.
func (s *Scanner) Scan(ctx context.Context, root Root) <-chan Result {
	results := make(chan Result, 64)

	go func() {
		defer close(results)

		info, err := os.Stat(root.Path)
		if err != nil || !info.IsDir() {
			slog.Warn("source root not available, skipping",
				"label", root.Label,
				"path", root.Path)
			return
		}

		walkErr := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				// Unreadable subtree: log and keep walking siblings.
				slog.Warn("scan error, skipping entry", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if d.IsDir() {
				if path != root.Path && isHidden(name) {
					return filepath.SkipDir
				}
				return nil
			}
			if isHidden(name) || !d.Type().IsRegular() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(name))
			if s.options.Extensions != nil && !s.options.Extensions[ext] {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				slog.Warn("stat failed, skipping file", "path", path, "error", err)
				return nil
			}
			if fi.Size() > s.options.MaxFileSize {
				slog.Debug("file exceeds size limit, skipping",
					"path", path,
					"size", fi.Size(),
					"limit", s.options.MaxFileSize)
				return nil
			}
			rel, err := filepath.Rel(root.Path, path)
			if err != nil {
				return nil
			}

			result := Result{File: &FileInfo{
				Root:    root,
				RelPath: filepath.ToSlash(rel),
				AbsPath: path,
				Size:    fi.Size(),
				ModTime: fi.ModTime().UTC(),
				Ext:     ext,
			}}
			select {
			case results <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if walkErr != nil && walkErr != context.Canceled && ctx.Err() == nil {
			select {
			case results <- Result{Err: walkErr}:
			case <-ctx.Done():
			}
		}
	}()

	return results
}

// HasFiles reports whether any regular file exists under path, ignoring
// hidden directories. It answers "do the roots hold anything worth
// indexing" without the cost of a full scan.
func HasFiles(path string) bool {
	found := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
