// Package charts builds self-contained HTML chart documents from analysis
// results. Generation is pure string work; rasterizing a document to PNG
// through headless Chrome lives behind Renderer.Snapshot and is optional.
package charts

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"presalecli/internal/pipeline"
	"presalecli/pkg/contracts/domain"
)

// maxBars bounds region bar charts so dense datasets stay readable.
const maxBars = 15

var riskColors = map[domain.RiskLevel]string{
	domain.RiskLow:    "#2e7d32",
	domain.RiskMedium: "#f9a825",
	domain.RiskHigh:   "#c62828",
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="zh-Hant">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: "Noto Sans TC", "Microsoft JhengHei", sans-serif; margin: 24px; color: #222; }
h1 { font-size: 20px; margin-bottom: 4px; }
.meta { color: #666; font-size: 13px; margin-bottom: 20px; }
figure.chart { margin: 0 0 28px 0; }
.chart-title { font-size: 15px; font-weight: bold; fill: #222; }
.bar { fill: #1565c0; }
.bar-label, .bar-value, .legend-label { font-size: 12px; fill: #333; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Run {{.RunID}} / analysis date {{.AnalysisDate}}</p>
{{range .Charts}}<figure class="chart">{{.}}</figure>
{{end}}</body>
</html>
`))

type pageData struct {
	Title        string
	RunID        string
	AnalysisDate string
	Charts       []template.HTML
}

// BuildOverview renders the analysis overview document: district and city
// absorption bars plus the risk distribution pie.
func BuildOverview(res *pipeline.Result) (string, error) {
	if res == nil {
		return "", fmt.Errorf("no result to chart")
	}

	var figures []template.HTML
	if svg := rollupBars("District absorption (overall %)", res.Districts); svg != "" {
		figures = append(figures, svg)
	}
	if svg := rollupBars("City absorption (overall %)", res.Cities); svg != "" {
		figures = append(figures, svg)
	}
	if svg := riskPie("Risk distribution (regions)", res.Risk); svg != "" {
		figures = append(figures, svg)
	}
	if len(figures) == 0 {
		return "", fmt.Errorf("result has no chartable data")
	}

	data := pageData{
		Title:        "PresalePulse Analysis Overview",
		RunID:        res.RunID,
		AnalysisDate: res.AnalysisDate.Format("2006-01-02"),
		Charts:       figures,
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render chart page: %w", err)
	}
	return buf.String(), nil
}

// rollupBars charts regions by overall absorption, strongest first.
func rollupBars(title string, rollups []domain.RegionRollup) template.HTML {
	if len(rollups) == 0 {
		return ""
	}
	rows := make([]domain.RegionRollup, len(rollups))
	copy(rows, rollups)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].OverallRate != rows[j].OverallRate {
			return rows[i].OverallRate > rows[j].OverallRate
		}
		return rows[i].Region() < rows[j].Region()
	})
	if len(rows) > maxBars {
		rows = rows[:maxBars]
	}

	data := make([]BarDatum, 0, len(rows))
	for _, r := range rows {
		data = append(data, BarDatum{Label: r.Region(), Value: r.OverallRate})
	}
	return barChartSVG(title, data)
}

func riskPie(title string, records []domain.RiskRecord) template.HTML {
	if len(records) == 0 {
		return ""
	}
	dist := make(map[domain.RiskLevel]int)
	for _, rec := range records {
		dist[rec.Level()]++
	}

	data := make([]PieDatum, 0, 3)
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh} {
		data = append(data, PieDatum{
			Label: level.String(),
			Value: float64(dist[level]),
			Color: riskColors[level],
		})
	}
	return pieChartSVG(title, data)
}

// Renderer writes chart documents and optionally rasterizes them.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer returns a Renderer; a nil logger falls back to the default.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// WriteHTML builds the overview document and writes it to path.
func (r *Renderer) WriteHTML(res *pipeline.Result, path string) error {
	doc, err := BuildOverview(res)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create charts directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write chart document: %w", err)
	}
	r.logger.Info("chart document written", slog.String("path", path))
	return nil
}
