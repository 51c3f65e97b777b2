package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, results <-chan Result) []*FileInfo {
	t.Helper()
	var files []*FileInfo
	for r := range results {
		require.NoError(t, r.Err)
		files = append(files, r.File)
	}
	return files
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewRoot(t *testing.T) {
	root := NewRoot("/mnt/kb/policies/")
	assert.Equal(t, "policies", root.Label)
	assert.Equal(t, "/mnt/kb/policies", root.Path)
}

func TestDocumentID(t *testing.T) {
	f := FileInfo{Root: Root{Label: "policies"}, RelPath: "hr/leave.md"}
	assert.Equal(t, "policies/hr/leave.md", f.DocumentID())
}

func TestScanFindsFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "sub", "b.md"), "beta")

	scanner := NewScanner()
	files := collect(t, scanner.Scan(context.Background(), NewRoot(dir)))

	require.Len(t, files, 2)
	ids := []string{files[0].RelPath, files[1].RelPath}
	assert.Contains(t, ids, "a.txt")
	assert.Contains(t, ids, "sub/b.md")
	for _, f := range files {
		assert.Equal(t, filepath.Base(dir), f.Root.Label)
		assert.True(t, filepath.IsAbs(f.AbsPath))
		assert.Positive(t, f.Size)
		assert.False(t, f.ModTime.IsZero())
	}
}

func TestScanSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "x")
	writeFile(t, filepath.Join(dir, ".git", "config"), "x")
	writeFile(t, filepath.Join(dir, "visible.txt"), "x")

	files := collect(t, NewScanner().Scan(context.Background(), NewRoot(dir)))

	require.Len(t, files, 1)
	assert.Equal(t, "visible.txt", files[0].RelPath)
}

func TestScanExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc.md"), "x")
	writeFile(t, filepath.Join(dir, "image.png"), "x")
	writeFile(t, filepath.Join(dir, "UPPER.MD"), "x")

	scanner := NewScannerWithOptions(Options{Extensions: map[string]bool{".md": true}})
	files := collect(t, scanner.Scan(context.Background(), NewRoot(dir)))

	require.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, ".md", f.Ext)
	}
}

func TestScanSizeLimit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "small.txt"), "ok")
	writeFile(t, filepath.Join(dir, "big.txt"), "this one is too large")

	scanner := NewScannerWithOptions(Options{MaxFileSize: 10})
	files := collect(t, scanner.Scan(context.Background(), NewRoot(dir)))

	require.Len(t, files, 1)
	assert.Equal(t, "small.txt", files[0].RelPath)
}

func TestScanMissingRoot(t *testing.T) {
	files := collect(t, NewScanner().Scan(context.Background(), NewRoot("/nonexistent/kb")))
	assert.Empty(t, files)
}

func TestScanRootIsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notadir.txt")
	writeFile(t, path, "x")

	files := collect(t, NewScanner().Scan(context.Background(), NewRoot(path)))
	assert.Empty(t, files)
}

func TestScanCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 200; i++ {
		writeFile(t, filepath.Join(dir, "f", string(rune('a'+i%26))+".txt"), "x")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewScanner().Scan(ctx, NewRoot(dir))
	count := 0
	for range results {
		count++
	}
	// Cancelled before consumption: at most the buffered prefix arrives.
	assert.LessOrEqual(t, count, 64)
}

func TestLabels(t *testing.T) {
	roots := NewRoots([]string{"/mnt/kb/policies", "/mnt/kb/runbooks"})
	labels := Labels(roots)
	assert.True(t, labels["policies"])
	assert.True(t, labels["runbooks"])
	assert.Len(t, labels, 2)
}

func TestHasFiles(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasFiles(dir))

	writeFile(t, filepath.Join(dir, ".hidden", "f.txt"), "x")
	assert.False(t, HasFiles(dir))

	writeFile(t, filepath.Join(dir, "sub", "f.txt"), "x")
	assert.True(t, HasFiles(dir))
}
