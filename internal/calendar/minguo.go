// Package calendar converts the era-offset (Minguo/ROC) date encodings used
// by Taiwan housing datasets into absolute dates, and derives the fiscal
// quarter labels that the aggregation layer buckets by.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultEraOffset converts a Minguo era year to a Gregorian year. The
// offset is configuration, not logic: datasets from other era calendars
// only need a different constant.
const DefaultEraOffset = 1911

// Calendar normalizes era-encoded date values. The zero value is not
// usable; construct with New or Default.
type Calendar struct {
	eraOffset int
}

// New returns a Calendar with the given era-to-absolute-year offset.
func New(eraOffset int) Calendar {
	return Calendar{eraOffset: eraOffset}
}

// Default returns a Calendar for the Minguo calendar (offset 1911).
func Default() Calendar {
	return Calendar{eraOffset: DefaultEraOffset}
}

// Normalize decodes a raw date cell into an absolute date. Accepted shapes:
//
//	1110520     7 digits, era year + month + day
//	991231      6 digits, two-digit era year + month + day
//	20220520    8 digits, already Gregorian
//	111/05/20   slash-separated era form
//	11105       5 digits, era year + month (day 1)
//
// Trailing ".0" artifacts from spreadsheet exports are stripped. Malformed
// input (wrong digit count, month or day out of range, zero or negative
// values) returns ok=false; Normalize never panics and never returns an
// error value.
func (c Calendar) Normalize(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return time.Time{}, false
	}

	if strings.Contains(s, "/") {
		return c.normalizeSlash(s)
	}
	if !digitsOnly(s) {
		return time.Time{}, false
	}

	switch len(s) {
	case 8: // Gregorian YYYYMMDD
		return buildDate(atoi(s[:4]), atoi(s[4:6]), atoi(s[6:8]))
	case 7: // EEEMMDD
		return buildDate(atoi(s[:3])+c.eraOffset, atoi(s[3:5]), atoi(s[5:7]))
	case 6: // EEMMDD
		return buildDate(atoi(s[:2])+c.eraOffset, atoi(s[2:4]), atoi(s[4:6]))
	case 5: // EEEMM year-month
		return buildDate(atoi(s[:3])+c.eraOffset, atoi(s[3:5]), 1)
	default:
		return time.Time{}, false
	}
}

func (c Calendar) normalizeSlash(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || !digitsOnly(p) {
			return time.Time{}, false
		}
		nums[i] = atoi(p)
	}
	year := nums[0]
	if year < 1000 { // era form; four digits would already be Gregorian
		year += c.eraOffset
	}
	return buildDate(year, nums[1], nums[2])
}

// EraYear returns the era year for an absolute date.
func (c Calendar) EraYear(t time.Time) int {
	return t.Year() - c.eraOffset
}

// QuarterLabel derives the fiscal-quarter label, e.g. "111Y3S" for the
// third quarter of era year 111.
func (c Calendar) QuarterLabel(t time.Time) string {
	return c.QuarterOf(t).Label()
}

// QuarterOf returns the sortable quarter value for an absolute date.
func (c Calendar) QuarterOf(t time.Time) Quarter {
	return Quarter{
		EraYear: c.EraYear(t),
		Index:   (int(t.Month())-1)/3 + 1,
	}
}

// Quarter identifies one fiscal quarter of an era year. Unlike the string
// label, it orders correctly across the 99 -> 100 era-year boundary.
type Quarter struct {
	EraYear int
	Index   int
}

// Label renders the "{era_year}Y{quarter}S" form.
func (q Quarter) Label() string {
	return fmt.Sprintf("%dY%dS", q.EraYear, q.Index)
}

// Before reports whether q is chronologically before other.
func (q Quarter) Before(other Quarter) bool {
	if q.EraYear != other.EraYear {
		return q.EraYear < other.EraYear
	}
	return q.Index < other.Index
}

// IsZero reports whether q is the zero value.
func (q Quarter) IsZero() bool {
	return q.EraYear == 0 && q.Index == 0
}

// ParseQuarterLabel parses a "{era_year}Y{quarter}S" label back into a
// Quarter. Returns ok=false for malformed labels or quarter indices
// outside 1-4.
func ParseQuarterLabel(label string) (Quarter, bool) {
	s := strings.TrimSpace(label)
	s, ok := strings.CutSuffix(s, "S")
	if !ok {
		return Quarter{}, false
	}
	yearPart, idxPart, ok := strings.Cut(s, "Y")
	if !ok || yearPart == "" || idxPart == "" {
		return Quarter{}, false
	}
	if !digitsOnly(yearPart) || !digitsOnly(idxPart) {
		return Quarter{}, false
	}
	q := Quarter{EraYear: atoi(yearPart), Index: atoi(idxPart)}
	if q.EraYear <= 0 || q.Index < 1 || q.Index > 4 {
		return Quarter{}, false
	}
	return q, true
}

// buildDate validates month/day ranges by round-tripping through
// time.Date, which silently normalizes overflow (month 13, day 32).
func buildDate(year, month, day int) (time.Time, bool) {
	if year <= 0 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
