package charts

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// BarDatum is one horizontal bar.
type BarDatum struct {
	Label string
	Value float64
}

// PieDatum is one pie slice.
type PieDatum struct {
	Label string
	Value float64
	Color string
}

const (
	barChartWidth = 640
	barHeight     = 22
	barGap        = 6
	barLabelWidth = 180
	barValueWidth = 70
	chartPadding  = 10
	titleHeight   = 28

	pieRadius     = 110
	pieLegendLine = 22
)

// barChartSVG renders horizontal bars scaled to the maximum value.
// Returns "" when there is nothing to draw.
func barChartSVG(title string, data []BarDatum) template.HTML {
	if len(data) == 0 {
		return ""
	}
	maxV := 0.0
	for _, d := range data {
		if d.Value > maxV {
			maxV = d.Value
		}
	}
	if maxV <= 0 {
		maxV = 1
	}

	height := chartPadding*2 + titleHeight + len(data)*(barHeight+barGap)
	span := float64(barChartWidth - barLabelWidth - barValueWidth - chartPadding*2)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img">`,
		barChartWidth, height, barChartWidth, height)
	fmt.Fprintf(&b, `<text x="%d" y="%d" class="chart-title">%s</text>`,
		chartPadding, chartPadding+16, template.HTMLEscapeString(title))

	for i, d := range data {
		y := chartPadding + titleHeight + i*(barHeight+barGap)
		w := span * (d.Value / maxV)
		if w < 1 && d.Value > 0 {
			w = 1
		}
		fmt.Fprintf(&b, `<text x="%d" y="%d" class="bar-label">%s</text>`,
			chartPadding, y+barHeight-6, template.HTMLEscapeString(d.Label))
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%.1f" height="%d" class="bar"/>`,
			barLabelWidth, y, w, barHeight)
		fmt.Fprintf(&b, `<text x="%.1f" y="%d" class="bar-value">%.2f</text>`,
			float64(barLabelWidth)+w+6, y+barHeight-6, d.Value)
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

// pieChartSVG renders a pie with a legend on the right. Zero-valued
// slices are dropped; a single surviving slice becomes a full circle.
func pieChartSVG(title string, data []PieDatum) template.HTML {
	total := 0.0
	slices := make([]PieDatum, 0, len(data))
	for _, d := range data {
		if d.Value > 0 {
			total += d.Value
			slices = append(slices, d)
		}
	}
	if total <= 0 {
		return ""
	}

	cx := chartPadding + pieRadius
	cy := chartPadding + titleHeight + pieRadius
	legendX := cx + pieRadius + 30
	width := legendX + 220
	height := chartPadding*2 + titleHeight + pieRadius*2

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img">`,
		width, height, width, height)
	fmt.Fprintf(&b, `<text x="%d" y="%d" class="chart-title">%s</text>`,
		chartPadding, chartPadding+16, template.HTMLEscapeString(title))

	if len(slices) == 1 {
		fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="%s"/>`,
			cx, cy, pieRadius, slices[0].Color)
	} else {
		angle := -math.Pi / 2
		for _, d := range slices {
			sweep := 2 * math.Pi * (d.Value / total)
			x1 := float64(cx) + pieRadius*math.Cos(angle)
			y1 := float64(cy) + pieRadius*math.Sin(angle)
			x2 := float64(cx) + pieRadius*math.Cos(angle+sweep)
			y2 := float64(cy) + pieRadius*math.Sin(angle+sweep)
			largeArc := 0
			if sweep > math.Pi {
				largeArc = 1
			}
			fmt.Fprintf(&b, `<path d="M%d,%d L%.2f,%.2f A%d,%d 0 %d 1 %.2f,%.2f Z" fill="%s"/>`,
				cx, cy, x1, y1, pieRadius, pieRadius, largeArc, x2, y2, d.Color)
			angle += sweep
		}
	}

	for i, d := range slices {
		y := chartPadding + titleHeight + 10 + i*pieLegendLine
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="14" height="14" fill="%s"/>`,
			legendX, y, d.Color)
		fmt.Fprintf(&b, `<text x="%d" y="%d" class="legend-label">%s: %.0f (%.1f%%)</text>`,
			legendX+20, y+12, template.HTMLEscapeString(d.Label), d.Value, d.Value/total*100)
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}
