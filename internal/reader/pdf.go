package reader

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/tliops/kbsync/internal/errors"
)

func extractPDF(path string) (text string, err error) {
	// The pdf library panics on some malformed documents; convert that
	// into the same advisory error a parse failure produces.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.IOError(
				fmt.Sprintf("pdf extraction failed for %s", filepath.Base(path)),
				fmt.Errorf("panic: %v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("failed to open pdf %s", filepath.Base(path)), err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("pdf extraction failed for %s", filepath.Base(path)), err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", errors.IOError(
			fmt.Sprintf("pdf extraction failed for %s", filepath.Base(path)), err)
	}
	return buf.String(), nil
}
