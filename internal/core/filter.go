package core

import "strings"

// ColumnFilters maps a field name to the text its value must contain.
type ColumnFilters map[string]string

// Active returns the filters with a non-blank value, restricted to the
// allowed fields. A nil allow list accepts every field.
func (f ColumnFilters) Active(allowed []string) ColumnFilters {
	var allow map[string]bool
	if allowed != nil {
		allow = make(map[string]bool, len(allowed))
		for _, name := range allowed {
			allow[name] = true
		}
	}

	out := make(ColumnFilters)
	for field, value := range f {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if allow != nil && !allow[field] {
			continue
		}
		out[field] = strings.ToLower(value)
	}
	return out
}

// Match reports whether a row satisfies every filter. Filters are expected
// to come from Active (trimmed and lower-cased). A null value fails.
func (f ColumnFilters) Match(row Row) bool {
	for field, want := range f {
		v, ok := row[field]
		if !ok || v == nil {
			return false
		}
		if !strings.Contains(strings.ToLower(Stringify(v)), want) {
			return false
		}
	}
	return true
}

// ApplyColumnFilters returns the rows satisfying all active filters.
// The input slice is not modified.
func ApplyColumnFilters(rows []Row, filters ColumnFilters, allowed []string) []Row {
	active := filters.Active(allowed)
	if len(active) == 0 {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if active.Match(row) {
			out = append(out, row)
		}
	}
	return out
}
