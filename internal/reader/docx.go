package reader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tliops/kbsync/internal/errors"
)

// extractDOCX pulls visible text out of word/document.xml. A .docx is a
// zip archive; paragraph runs live in <w:t> elements and paragraphs are
// joined with newlines so downstream splitting sees natural boundaries.
func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("failed to open docx %s", filepath.Base(path)), err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.IOError(
			fmt.Sprintf("docx %s has no document part", filepath.Base(path)), nil)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("failed to read docx %s", filepath.Base(path)), err)
	}
	defer rc.Close()

	text, err := decodeDocumentXML(rc)
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("docx extraction failed for %s", filepath.Base(path)), err)
	}
	return text, nil
}

func decodeDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "br", "tab":
				sb.WriteByte(' ')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return sb.String(), nil
}
