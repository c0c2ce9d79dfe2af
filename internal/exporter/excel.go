package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"presalecli/internal/pipeline"
)

// WorkbookFile is the default workbook name inside the reports directory.
const WorkbookFile = "presale_analysis.xlsx"

// ExcelExporter writes a whole analysis run as a single workbook with one
// sheet per result table.
type ExcelExporter struct {
	reportsDir string
}

// NewExcelExporter creates an exporter rooted at the reports directory.
func NewExcelExporter(reportsDir string) *ExcelExporter {
	return &ExcelExporter{reportsDir: reportsDir}
}

// Export writes the workbook and returns its path. An empty name selects
// WorkbookFile.
func (e *ExcelExporter) Export(res *pipeline.Result, name string) (string, error) {
	if name == "" {
		name = WorkbookFile
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("create header style: %w", err)
	}

	sheets := []struct {
		name    string
		headers []string
		records [][]string
	}{
		{"Summary", summaryHeaders, summaryRecords(res)},
		{"Projects", projectHeaders, projectRecords(res.Projects)},
		{"Districts", rollupHeaders, rollupRecords(res.Districts)},
		{"Cities", rollupHeaders, rollupRecords(res.Cities)},
		{"Quarterly", quarterlyHeaders, quarterlyRecords(res.Quarterly)},
		{"Risk", riskHeaders, riskRecords(res.Risk)},
	}
	for _, sh := range sheets {
		if err := writeSheet(f, sh.name, sh.headers, sh.records, headerStyle); err != nil {
			return "", fmt.Errorf("sheet %s: %w", sh.name, err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex("Summary"); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	path := name
	if !filepath.IsAbs(path) && e.reportsDir != "" {
		path = filepath.Join(e.reportsDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create workbook directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeSheet(f *excelize.File, name string, headers []string, records [][]string, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &row); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header row: %w", err)
	}

	for i, rec := range records {
		cells := make([]interface{}, len(rec))
		for j, v := range rec {
			cells[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	// Keep the header visible while scrolling.
	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue stores numeric-looking strings as numbers so spreadsheet
// formulas work; everything else stays text.
func cellValue(v string) interface{} {
	if v == "" {
		return ""
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
