package reader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tliops/kbsync/internal/errors"
)

// extractCSV renders each record as a comma-joined line. Ragged rows are
// tolerated; the point is searchable text, not schema fidelity.
func extractCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("failed to open csv %s", filepath.Base(path)), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("csv parse failed for %s", filepath.Base(path)), err)
	}

	var sb strings.Builder
	for _, record := range records {
		sb.WriteString(strings.Join(record, ", "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// extractWorkbook flattens every sheet into text, one comma-joined line
// per row, each sheet introduced by a "### Sheet: name" heading so chunk
// boundaries tend to fall between sheets.
func extractWorkbook(path string) (string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", errors.IOError(
			fmt.Sprintf("failed to open workbook %s", filepath.Base(path)), err)
	}
	defer wb.Close()

	var sb strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		sb.WriteString("### Sheet: ")
		sb.WriteString(sheet)
		sb.WriteByte('\n')
		for _, row := range rows {
			sb.WriteString(strings.Join(row, ", "))
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
