package core

// search.go compiles the console's free-text search box into a row predicate.
//
// Query syntax is whitespace separated tokens:
//
//	+term   the row must contain term
//	-term   the row must not contain term
//	term    same as +term
//
// A lone "+" or "-" is treated as a bare token and must match literally.
// Matching is a case-insensitive substring test against the row's search
// text: the lower-cased, space-joined values of the searchable fields.

import "strings"

// SearchQuery is a parsed search string.
type SearchQuery struct {
	Include []string
	Exclude []string
}

// Empty reports whether the query accepts every row.
func (q SearchQuery) Empty() bool {
	return len(q.Include) == 0 && len(q.Exclude) == 0
}

// ParseSearch splits a search string into include and exclude terms.
// Terms are lower-cased.
func ParseSearch(query string) SearchQuery {
	var q SearchQuery
	for _, tok := range strings.Fields(query) {
		tok = strings.ToLower(tok)
		switch {
		case len(tok) > 1 && tok[0] == '+':
			q.Include = append(q.Include, tok[1:])
		case len(tok) > 1 && tok[0] == '-':
			q.Exclude = append(q.Exclude, tok[1:])
		default:
			q.Include = append(q.Include, tok)
		}
	}
	return q
}

// SearchText builds the text a row is searched against.
func SearchText(row Row, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := row.Text(f); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Matches reports whether the given search text satisfies the query.
// Exclusions are checked first.
func (q SearchQuery) Matches(text string) bool {
	for _, term := range q.Exclude {
		if strings.Contains(text, term) {
			return false
		}
	}
	for _, term := range q.Include {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// CompileSearch returns a predicate accepting rows that satisfy query over
// the given searchable fields.
func CompileSearch(query string, fields []string) func(Row) bool {
	q := ParseSearch(query)
	if q.Empty() {
		return func(Row) bool { return true }
	}
	return func(row Row) bool {
		return q.Matches(SearchText(row, fields))
	}
}
