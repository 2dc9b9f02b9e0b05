package core

// convert.go normalizes the values users type or import into the formats the
// asset backend expects.
//
// Dates arrive in many shapes: ISO strings from the backend
// ("2024-01-05T00:00:00"), spreadsheet exports ("2024.01.05", "2024/01"),
// compact digits ("20240105") and spreadsheet serial numbers ("45296").
// Month-only values are pinned to the first day of the month.

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is sent when creating records.
	DateLayout = "2006-01-02"
	// DateTimeLayout is sent by bulk updates.
	DateTimeLayout = "2006-01-02T15:04:05"
)

var (
	dayLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-1-2", "2006/1/2", "2006.1.2",
		"20060102",
	}
	monthLayouts = []string{
		"2006-01", "2006/01", "2006.01",
	}
	timestampLayouts = []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02T15:04:05", "2006-01-02T15:04:05.000", "2006-01-02 15:04:05",
	}
)

// spreadsheetEpoch is day zero of spreadsheet serial dates.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses a user or backend supplied date. The time of day is
// dropped. Returns false for blank or unparseable input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSpreadsheetDate parses an imported cell, accepting everything
// ParseDate does plus spreadsheet serial numbers.
func ParseSpreadsheetDate(s string) (time.Time, bool) {
	if t, ok := ParseDate(s); ok {
		return t, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 || f > 2958465 {
		return time.Time{}, false
	}
	days := math.Floor(f)
	return spreadsheetEpoch.AddDate(0, 0, int(days)), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date value with layout, or returns nil when the value
// is blank or unparseable so the payload carries JSON null.
func FormatDate(v any, layout string) any {
	t, ok := ParseDate(Stringify(v))
	if !ok {
		return nil
	}
	return t.Format(layout)
}

// IsDate reports whether v holds a parseable date.
func IsDate(v any) bool {
	_, ok := ParseDate(Stringify(v))
	return ok
}

// HasText reports whether v stringifies to a non-blank value.
func HasText(v any) bool {
	return strings.TrimSpace(Stringify(v)) != ""
}

// TrimText returns the trimmed string form of v.
func TrimText(v any) string {
	return strings.TrimSpace(Stringify(v))
}

// NormalizeSerial is the comparison form of a serial number.
func NormalizeSerial(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeKey is the comparison form of an employee id.
func NormalizeKey(s string) string {
	return strings.TrimSpace(s)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// CleanHeader normalizes a spreadsheet header for matching: cell cleanup,
// a stray UTF-8 BOM removed and inner spaces dropped.
func CleanHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = CleanCell(s)
	return strings.ReplaceAll(s, " ", "")
}
