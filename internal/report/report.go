// Package report renders one analysis run as a plain-text summary for
// console output or archival next to the CSV exports.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"presalecli/internal/pipeline"
	"presalecli/pkg/contracts/domain"
)

// listLimit bounds the top/bottom project listings.
const listLimit = 10

// Write renders the full text report. Listings are deterministically
// ordered so two runs over the same result render identical sections.
func Write(w io.Writer, res *pipeline.Result) error {
	if res == nil {
		return fmt.Errorf("no result to report")
	}

	pw := &printWriter{w: w}

	pw.printf("PresalePulse - Pre-Sale Absorption & Risk Report\n")
	pw.printf("================================================\n\n")
	pw.printf("Run: %s\n", res.RunID)
	pw.printf("Analysis Date: %s\n", res.AnalysisDate.Format("2006-01-02"))
	pw.printf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	writeDiagnostics(pw, res)
	writeProjectLists(pw, res.Projects)
	writeRollupTable(pw, "DISTRICT OVERVIEW", res.Districts)
	writeRollupTable(pw, "CITY OVERVIEW", res.Cities)
	writeRisk(pw, res.Risk)

	return pw.err
}

// Save writes the report to path, creating parent directories.
func Save(path string, res *pipeline.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := Write(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printWriter carries the first write error through the section helpers.
type printWriter struct {
	w   io.Writer
	err error
}

func (p *printWriter) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func writeDiagnostics(pw *printWriter, res *pipeline.Result) {
	d := res.Diagnostics

	pw.printf("DATASET OVERVIEW\n")
	pw.printf("----------------\n")
	pw.printf("Projects Analyzed: %d\n", len(res.Projects))
	pw.printf("%s\n", d.Summary())
	pw.printf("Fallback Matches: %d\n", d.FallbackMatches)
	pw.printf("Dropped Rows: %d project, %d transaction\n\n",
		d.DroppedProjectRows, d.DroppedTransactionRows)
}

func writeProjectLists(pw *printWriter, projects []domain.LinkedProject) {
	rated := make([]domain.LinkedProject, 0, len(projects))
	for _, p := range projects {
		if p.RateValid {
			rated = append(rated, p)
		}
	}
	if len(rated) == 0 {
		return
	}
	sort.Slice(rated, func(i, j int) bool {
		if rated[i].TimeAdjustedRate != rated[j].TimeAdjustedRate {
			return rated[i].TimeAdjustedRate > rated[j].TimeAdjustedRate
		}
		return rated[i].ID < rated[j].ID
	})

	n := listLimit
	if n > len(rated) {
		n = len(rated)
	}

	writeTitle(pw, fmt.Sprintf("TOP %d PROJECTS (Time-Adjusted Absorption)", n))
	for i, p := range rated[:n] {
		writeProjectLine(pw, i+1, p)
	}
	pw.printf("\n")

	writeTitle(pw, fmt.Sprintf("BOTTOM %d PROJECTS (Time-Adjusted Absorption)", n))
	for i, p := range rated[len(rated)-n:] {
		writeProjectLine(pw, i+1, p)
	}
	pw.printf("\n")
}

func writeProjectLine(pw *printWriter, rank int, p domain.LinkedProject) {
	pw.printf("%2d. %s (%s %s): %.4f (%.2f%% sold, %.1f months, %s)\n",
		rank, p.Name, p.City, p.District,
		p.TimeAdjustedRate, p.AbsorptionRate, p.ElapsedMonths, p.Performance)
}

func writeRollupTable(pw *printWriter, title string, rollups []domain.RegionRollup) {
	if len(rollups) == 0 {
		return
	}
	rows := make([]domain.RegionRollup, len(rollups))
	copy(rows, rollups)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].OverallRate != rows[j].OverallRate {
			return rows[i].OverallRate > rows[j].OverallRate
		}
		return rows[i].Region() < rows[j].Region()
	})

	writeTitle(pw, title)
	pw.printf("Region | Projects | Units | Sold | Overall | TimeAdj | Tier\n")
	for _, r := range rows {
		pw.printf("%-16s | %8d | %5d | %4d | %6.2f%% | %7.4f | %s\n",
			r.Region(), r.ProjectCount, r.TotalUnits, r.UnitsSold,
			r.OverallRate, r.TimeAdjustedRate, r.Tier)
	}
	pw.printf("\n")
}

func writeRisk(pw *printWriter, records []domain.RiskRecord) {
	if len(records) == 0 {
		return
	}

	dist := make(map[domain.RiskLevel]int)
	var high []domain.RiskRecord
	for _, rec := range records {
		level := rec.Level()
		dist[level]++
		if level == domain.RiskHigh {
			high = append(high, rec)
		}
	}

	writeTitle(pw, "RISK DISTRIBUTION")
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh} {
		count := dist[level]
		pw.printf("%-6s: %3d (%.1f%%)\n", level, count,
			float64(count)/float64(len(records))*100)
	}
	pw.printf("\n")

	if len(high) == 0 {
		return
	}
	sort.Slice(high, func(i, j int) bool { return high[i].Region() < high[j].Region() })

	writeTitle(pw, "HIGH RISK REGIONS")
	for i, rec := range high {
		rationale := rec.RelativeRationale
		if rec.RelativeMethod == domain.MethodFallback || rationale == "" {
			rationale = rec.AbsoluteRationale
		}
		pw.printf("%2d. %s: %s\n", i+1, rec.Region(), rationale)
	}
	pw.printf("\n")
}

func writeTitle(pw *printWriter, title string) {
	pw.printf("%s\n", title)
	pw.printf("%s\n", strings.Repeat("-", len(title)))
}
