package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readExcelTable opens an XLSX workbook and returns the cell grid of the
// first sheet whose leading rows carry the required header. Exports from
// different sources name the data sheet inconsistently, so the header, not
// the sheet name, decides.
func readExcelTable(path string, required []column) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var fallback [][]string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		if index, _, _ := findHeader(rows, required); index != nil {
			return rows, nil
		}
		// Remember the largest sheet so a missing-column failure reports
		// against real data instead of an empty cover sheet.
		if len(rows) > len(fallback) {
			fallback = rows
		}
	}

	if fallback == nil {
		return nil, fmt.Errorf("no data sheet found in %s", path)
	}
	return fallback, nil
}
