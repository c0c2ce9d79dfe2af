package exporter

import (
	"fmt"
	"time"
)

// formatFloat formats a float64 for CSV output with exactly 2 decimal
// places, so values like 13.4 appear as 13.40.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatFloat4 keeps 4 decimal places for the 0-1 scale rates.
func formatFloat4(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

// formatInt formats an int for CSV output.
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean for CSV output.
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatDate formats a date pointer, empty when nil.
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
