// Package dataset loads the two source tables of a market analysis run:
// the registered pre-sale projects and the registered transactions.
//
// Both tables arrive as CSV or XLSX exports with headers in the first few
// rows. Loading is forgiving at the row level: rows that cannot form a
// region/community key are counted and skipped, dates that fail to parse
// are counted and left unset, and only structural problems (unreadable
// file, missing required columns) abort the load.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"presalecli/internal/calendar"
	apperrors "presalecli/internal/errors"
	"presalecli/pkg/contracts/domain"
)

// LoadReport summarizes one table load for diagnostics and logging.
type LoadReport struct {
	Table             string `json:"table"`
	Path              string `json:"path"`
	Format            string `json:"format"`
	TotalRows         int    `json:"total_rows"`
	Accepted          int    `json:"accepted"`
	DroppedMissingKey int    `json:"dropped_missing_key"`
	UnparsedDates     int    `json:"unparsed_dates"`
}

// Dropped returns the number of data rows that were rejected.
func (r *LoadReport) Dropped() int {
	return r.TotalRows - r.Accepted
}

// Loader reads source tables into domain rows.
type Loader struct {
	cal    *calendar.Calendar
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil calendar falls back to the standard
// Republic of China era offset; a nil logger falls back to slog.Default.
func NewLoader(cal *calendar.Calendar, logger *slog.Logger) *Loader {
	if cal == nil {
		def := calendar.Default()
		cal = &def
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cal: cal, logger: logger}
}

// LoadProjects reads the pre-sale project table.
func (l *Loader) LoadProjects(ctx context.Context, path string) ([]domain.Project, *LoadReport, error) {
	rows, format, err := readTable(path, projectColumns)
	if err != nil {
		return nil, nil, err
	}

	index, headerRow, missing := findHeader(rows, projectColumns)
	if index == nil {
		return nil, nil, &apperrors.MissingColumnError{Table: "projects", Columns: missing}
	}

	report := &LoadReport{Table: "projects", Path: path, Format: format}
	projects := make([]domain.Project, 0, len(rows)-headerRow-1)

	for _, row := range rows[headerRow+1:] {
		if emptyRow(row) {
			continue
		}
		report.TotalRows++

		city := cleanCell(cellAt(row, index, colCity))
		district := cleanCell(cellAt(row, index, colDistrict))
		name := cleanCell(cellAt(row, index, colName))
		if city == "" || district == "" || name == "" {
			report.DroppedMissingKey++
			continue
		}

		p := domain.Project{
			ID:               cleanCell(cellAt(row, index, colSerial)),
			City:             city,
			District:         district,
			Name:             name,
			TotalUnits:       parseCount(cellAt(row, index, colUnits)),
			SelfSaleStart:    l.parseDate(cellAt(row, index, colSelfSale), report),
			AgentSaleStart:   l.parseDate(cellAt(row, index, colAgentSale), report),
			RegistrationDate: l.parseDate(cellAt(row, index, colRegistration), report),
			PermitDate:       l.parseDate(cellAt(row, index, colPermit), report),
		}
		projects = append(projects, p)
		report.Accepted++
	}

	l.logger.InfoContext(ctx, "project table loaded",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("rows", report.TotalRows),
		slog.Int("accepted", report.Accepted),
		slog.Int("dropped", report.Dropped()),
		slog.Int("unparsed_dates", report.UnparsedDates))

	return projects, report, nil
}

// LoadTransactions reads the transaction table. Rows whose date cannot be
// parsed are kept (they still count toward units sold) with a nil date;
// the report carries the count.
func (l *Loader) LoadTransactions(ctx context.Context, path string) ([]domain.Transaction, *LoadReport, error) {
	rows, format, err := readTable(path, transactionColumns)
	if err != nil {
		return nil, nil, err
	}

	index, headerRow, missing := findHeader(rows, transactionColumns)
	if index == nil {
		return nil, nil, &apperrors.MissingColumnError{Table: "transactions", Columns: missing}
	}

	report := &LoadReport{Table: "transactions", Path: path, Format: format}
	transactions := make([]domain.Transaction, 0, len(rows)-headerRow-1)

	for _, row := range rows[headerRow+1:] {
		if emptyRow(row) {
			continue
		}
		report.TotalRows++

		city := cleanCell(cellAt(row, index, colCity))
		district := cleanCell(cellAt(row, index, colDistrict))
		name := cleanCell(cellAt(row, index, colName))
		if city == "" || district == "" || name == "" {
			report.DroppedMissingKey++
			continue
		}

		tx := domain.Transaction{
			RefID:      cleanCell(cellAt(row, index, colSerial)),
			City:       city,
			District:   district,
			Name:       name,
			Date:       l.parseDate(cellAt(row, index, colTxDate), report),
			Period:     cleanCell(cellAt(row, index, colPeriod)),
			TotalPrice: parseAmount(cellAt(row, index, colTotalPrice)),
			UnitPrice:  parseAmount(cellAt(row, index, colUnitPrice)),
			Cancelled:  parseCancelled(cellAt(row, index, colCancel)),
		}
		transactions = append(transactions, tx)
		report.Accepted++
	}

	l.logger.InfoContext(ctx, "transaction table loaded",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("rows", report.TotalRows),
		slog.Int("accepted", report.Accepted),
		slog.Int("dropped", report.Dropped()),
		slog.Int("unparsed_dates", report.UnparsedDates))

	return transactions, report, nil
}

func (l *Loader) parseDate(raw string, report *LoadReport) *time.Time {
	cleaned := cleanCell(raw)
	if cleaned == "" {
		return nil
	}
	t, ok := l.cal.Normalize(cleaned)
	if !ok {
		report.UnparsedDates++
		return nil
	}
	return &t
}

// readTable reads the raw cell grid of a source file. XLSX files may have
// several sheets; the one carrying the required header wins.
func readTable(path string, required []column) ([][]string, string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err := readCSV(path)
		return rows, "csv", err
	case ".xlsx", ".xlsm":
		rows, err := readExcelTable(path, required)
		return rows, "xlsx", err
	default:
		return nil, "", fmt.Errorf("unsupported source format %q for %s (want .csv or .xlsx)", ext, path)
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv %s: %w", path, err)
	}
	return rows, nil
}

// cellAt returns the raw cell for a column, or "" when the column is
// absent from the header or the row is short.
func cellAt(row []string, index map[column]int, col column) string {
	idx, ok := index[col]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if cleanCell(cell) != "" {
			return false
		}
	}
	return true
}

// parseCount parses a unit count. Thousand separators are tolerated;
// anything unparseable or negative counts as zero.
func parseCount(raw string) int {
	cleaned := strings.ReplaceAll(cleanCell(raw), ",", "")
	if cleaned == "" {
		return 0
	}
	// Spreadsheet exports sometimes float-ify integers (e.g. "120.0")
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		if f < 0 {
			return 0
		}
		return int(f)
	}
	return 0
}

// parseAmount parses a monetary value in New Taiwan dollars.
func parseAmount(raw string) float64 {
	cleaned := strings.ReplaceAll(cleanCell(raw), ",", "")
	cleaned = strings.TrimSuffix(cleaned, "元")
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

// parseCancelled reads the cancellation column. The export leaves the cell
// empty (or a placeholder) for live deals and records the cancellation
// note otherwise.
func parseCancelled(raw string) bool {
	switch cleanCell(raw) {
	case "", "無", "-", "－":
		return false
	}
	return true
}
