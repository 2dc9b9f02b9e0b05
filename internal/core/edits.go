package core

// RowEditTracker records the uncommitted edits of a bulk-update session.
//
// For every row it keeps the latest full draft and the set of fields that
// have differed from the row's view at some point. Fields are only ever
// added to that set: editing a value back to its original keeps the row
// counted as edited until the session is cleared.
type RowEditTracker struct {
	fields []string
	order  []string
	drafts map[string]Row
	edited map[string][]string
}

// NewRowEditTracker tracks changes to the given fields.
func NewRowEditTracker(fields []string) *RowEditTracker {
	return &RowEditTracker{
		fields: fields,
		drafts: make(map[string]Row),
		edited: make(map[string][]string),
	}
}

// RecordChange compares next against current (the row as the user saw it:
// its existing draft, else the server row) and returns the tracked fields
// whose stringified value changed. When any changed, next becomes the row's
// draft and those fields join its edited set.
func (t *RowEditTracker) RecordChange(rowID string, current, next Row) []string {
	var changed []string
	for _, f := range t.fields {
		if Stringify(current[f]) != Stringify(next[f]) {
			changed = append(changed, f)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if _, ok := t.drafts[rowID]; !ok {
		t.order = append(t.order, rowID)
	}
	t.drafts[rowID] = next.Clone()

	set := t.edited[rowID]
	for _, f := range changed {
		if !contains(set, f) {
			set = append(set, f)
		}
	}
	t.edited[rowID] = set
	return changed
}

// Draft returns the draft of a row.
func (t *RowEditTracker) Draft(rowID string) (Row, bool) {
	d, ok := t.drafts[rowID]
	return d, ok
}

// Draft pairs a row identifier with its draft.
type Draft struct {
	RowID string
	Row   Row
}

// Drafts returns every draft in the order rows were first edited.
func (t *RowEditTracker) Drafts() []Draft {
	out := make([]Draft, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, Draft{RowID: id, Row: t.drafts[id]})
	}
	return out
}

// EditedFields returns the fields of a row that have been edited.
func (t *RowEditTracker) EditedFields(rowID string) []string {
	return append([]string(nil), t.edited[rowID]...)
}

// EditedCells returns the edited field set of every row.
func (t *RowEditTracker) EditedCells() map[string][]string {
	out := make(map[string][]string, len(t.edited))
	for id, fields := range t.edited {
		out[id] = append([]string(nil), fields...)
	}
	return out
}

// IsEdited reports whether a cell has been edited.
func (t *RowEditTracker) IsEdited(rowID, field string) bool {
	return contains(t.edited[rowID], field)
}

// EditedCount returns the number of rows with a draft.
func (t *RowEditTracker) EditedCount() int {
	return len(t.drafts)
}

// Clear drops every draft and edited set.
func (t *RowEditTracker) Clear() {
	t.order = nil
	t.drafts = make(map[string]Row)
	t.edited = make(map[string][]string)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
