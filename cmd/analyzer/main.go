package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"presalecli/internal/charts"
	"presalecli/internal/config"
	"presalecli/internal/exporter"
	"presalecli/internal/infrastructure"
	"presalecli/internal/pipeline"
	"presalecli/internal/report"
	"presalecli/internal/services"
	"presalecli/pkg/contracts"
)

func main() {
	projectsFile := flag.String("projects", "", "projects CSV path (defaults to configured path)")
	transactionsFile := flag.String("transactions", "", "transactions CSV path (defaults to configured path)")
	analysisDate := flag.String("date", "", "analysis snapshot date as YYYY-MM-DD (defaults to configured date)")
	outputDir := flag.String("out", "", "output directory for exports (defaults to configured reports dir)")
	format := flag.String("format", "csv", "export format: csv, excel or both")
	renderCharts := flag.Bool("charts", false, "render the HTML chart overview")
	renderSnapshot := flag.Bool("snapshot", false, "capture a PNG of the chart overview (requires a local Chrome, implies -charts)")
	uploadSheets := flag.Bool("sheets", false, "upload the risk table to the configured Google Sheet")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Keep stdout clean for the report text; logs go to the log file.
	cfg.Logging.Output = "file"
	logger := infrastructure.MustInitializeLogger(cfg.Logging)

	if *outputDir == "" {
		*outputDir = cfg.Paths.ReportsDir
	}
	if err := cfg.Paths.EnsureDirectories(); err != nil {
		fatal(logger, "Failed to create output directories", err)
	}

	svc, err := services.NewAnalysisService(cfg, nil, nil, logger)
	if err != nil {
		fatal(logger, "Failed to initialize analysis service", err)
	}

	req, err := buildRunRequest(*projectsFile, *transactionsFile, *analysisDate)
	if err != nil {
		fatal(logger, "Invalid arguments", err)
	}

	ctx := context.Background()
	res, err := svc.Run(ctx, req)
	if err != nil {
		fatal(logger, "Analysis failed", err)
	}

	if err := report.Write(os.Stdout, res); err != nil {
		fatal(logger, "Failed to write report", err)
	}

	if err := exportResults(res, *format, *outputDir); err != nil {
		fatal(logger, "Export failed", err)
	}
	logger.Info("exports written", slog.String("dir", *outputDir), slog.String("format", *format))

	if *renderCharts || *renderSnapshot {
		stamp := res.AnalysisDate.Format("20060102")
		renderer := charts.NewRenderer(logger)
		htmlPath := filepath.Join(cfg.Paths.ChartsDir, fmt.Sprintf("overview_%s.html", stamp))
		if err := renderer.WriteHTML(res, htmlPath); err != nil {
			fatal(logger, "Failed to render charts", err)
		}
		fmt.Fprintf(os.Stderr, "charts: %s\n", htmlPath)

		if *renderSnapshot {
			pngPath := filepath.Join(cfg.Paths.ChartsDir, fmt.Sprintf("overview_%s.png", stamp))
			if err := renderer.Snapshot(ctx, htmlPath, pngPath); err != nil {
				fatal(logger, "Failed to capture chart snapshot", err)
			}
			fmt.Fprintf(os.Stderr, "snapshot: %s\n", pngPath)
		}
	}

	if *uploadSheets {
		if !cfg.Export.SheetsEnabled() {
			fatal(logger, "Sheets upload requested but not configured",
				fmt.Errorf("set export.sheets_spreadsheet_id and export.credentials_file"))
		}
		uploader, err := exporter.NewSheetsUploader(ctx, exporter.SheetsConfig{
			SpreadsheetID:   cfg.Export.SheetsSpreadsheetID,
			Range:           cfg.Export.SheetsRange,
			CredentialsFile: cfg.Export.CredentialsFile,
		}, logger)
		if err != nil {
			fatal(logger, "Failed to create sheets uploader", err)
		}
		if err := uploader.UploadRisk(ctx, res.Risk); err != nil {
			fatal(logger, "Failed to upload risk table", err)
		}
		fmt.Fprintln(os.Stderr, "risk table uploaded to sheets")
	}
}

// buildRunRequest turns CLI arguments into a service request. Empty
// values keep the configured defaults.
func buildRunRequest(projectsFile, transactionsFile, analysisDate string) (services.RunRequest, error) {
	req := services.RunRequest{
		ProjectsFile:     projectsFile,
		TransactionsFile: transactionsFile,
	}
	if analysisDate != "" {
		date, err := time.Parse("2006-01-02", analysisDate)
		if err != nil {
			return services.RunRequest{}, fmt.Errorf("invalid analysis date %q, expected YYYY-MM-DD", analysisDate)
		}
		req.AnalysisDate = &date
	}
	return req, nil
}

// exportResults writes the run's tables in the requested format.
func exportResults(res *pipeline.Result, format, outputDir string) error {
	writeCSV := func() error {
		return exporter.NewResultExporter(outputDir).ExportAll(res)
	}
	writeExcel := func() error {
		name := fmt.Sprintf("presale_analysis_%s.xlsx", res.AnalysisDate.Format("20060102"))
		_, err := exporter.NewExcelExporter(outputDir).Export(res, name)
		return err
	}

	switch strings.ToLower(format) {
	case "csv":
		return writeCSV()
	case "excel", "xlsx":
		return writeExcel()
	case "both", "all":
		if err := writeCSV(); err != nil {
			return err
		}
		return writeExcel()
	default:
		return fmt.Errorf("unknown format %q, expected csv, excel or both", format)
	}
}

// fatal reports the failure on both the log file and stderr, then exits.
func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
