// Package exporter writes analysis results to files and external sinks.
//
// This package contains four main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// ResultExporter: Writes one analysis run as per-table CSV files
// (summary, projects, districts, cities, quarterly, risk) plus optional
// per-project quarterly history files.
//
// ExcelExporter: Packs the same tables into a single xlsx workbook with
// one sheet per table.
//
// SheetsUploader: Publishes the risk table to a shared Google Sheets
// spreadsheet.
//
// Example usage:
//
//	resultExporter := exporter.NewResultExporter("data/reports")
//	if err := resultExporter.ExportAll(res); err != nil {
//		return err
//	}
//
//	excelExporter := exporter.NewExcelExporter("data/reports")
//	path, err := excelExporter.Export(res, "")
package exporter
