// Package reader extracts plain text from source documents. Extraction is
// best effort: a file the readers cannot parse yields empty text and an
// advisory error, never a failed run.
package reader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliops/kbsync/internal/errors"
)

var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".log":      true,
	".pdf":      true,
	".docx":     true,
	".csv":      true,
	".xlsx":     true,
	".xls":      true,
	".xlsm":     true,
}

// Supported reports whether the lower-cased extension has a reader.
func Supported(ext string) bool {
	return supportedExtensions[ext]
}

// SupportedExtensions returns the set of extensions with readers.
func SupportedExtensions() map[string]bool {
	exts := make(map[string]bool, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts[ext] = true
	}
	return exts
}

// Extract reads the file at path and returns its textual content. Formats
// without a dedicated reader fall back to a plain-text attempt. On failure
// it returns empty text plus the error; callers treat that as "no content"
// and move on.
func Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	case ".csv":
		return extractCSV(path)
	case ".xlsx", ".xls", ".xlsm":
		return extractWorkbook(path)
	default:
		return extractText(path)
	}
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.IOError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	// Strip a UTF-8 BOM if present; everything else passes through as-is.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return string(data), nil
}
