package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"presalecli/pkg/contracts/domain"
)

// SheetsConfig selects the spreadsheet that receives risk uploads.
type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
}

// SheetsUploader publishes risk classifications to a Google Sheets
// spreadsheet so analysts can work from a shared live copy.
type SheetsUploader struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
	logger        *slog.Logger
}

// NewSheetsUploader reads the service-account credentials file and builds
// the Sheets client.
func NewSheetsUploader(ctx context.Context, cfg SheetsConfig, logger *slog.Logger) (*SheetsUploader, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.Range == "" {
		cfg.Range = "Risk!A1"
	}
	if logger == nil {
		logger = slog.Default()
	}

	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsUploader{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		writeRange:    cfg.Range,
		logger:        logger,
	}, nil
}

// UploadRisk replaces the target sheet's contents with the current risk
// table, header row first.
func (u *SheetsUploader) UploadRisk(ctx context.Context, records []domain.RiskRecord) error {
	rows := riskRecords(records)
	values := make([][]interface{}, 0, len(rows)+1)

	header := make([]interface{}, len(riskHeaders))
	for i, h := range riskHeaders {
		header[i] = h
	}
	values = append(values, header)
	for _, rec := range rows {
		row := make([]interface{}, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		values = append(values, row)
	}

	// Clear the whole sheet first so a shorter upload does not leave
	// stale rows from the previous run.
	clearRange := u.writeRange
	if i := strings.Index(clearRange, "!"); i > 0 {
		clearRange = clearRange[:i]
	}
	if _, err := u.service.Spreadsheets.Values.Clear(u.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet range %s: %w", clearRange, err)
	}

	valueRange := &sheets.ValueRange{Values: values}
	if _, err := u.service.Spreadsheets.Values.Update(u.spreadsheetID, u.writeRange, valueRange).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update sheet range %s: %w", u.writeRange, err)
	}

	u.logger.InfoContext(ctx, "risk table uploaded to sheets",
		slog.String("spreadsheet_id", u.spreadsheetID),
		slog.String("range", u.writeRange),
		slog.Int("rows", len(rows)))
	return nil
}
