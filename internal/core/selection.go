package core

// SelectionTracker holds the checkbox selection of a table in retire mode.
// Selection changes are ignored while the owning mode is inactive.
type SelectionTracker struct {
	active func() bool
	ids    []string
	last   string
}

// NewSelectionTracker creates a tracker that accepts changes only while
// active returns true.
func NewSelectionTracker(active func() bool) *SelectionTracker {
	return &SelectionTracker{active: active}
}

// OnSelectionChange replaces the selection with ids (duplicates dropped,
// order kept) and returns false when the change was ignored.
//
// LastSelected becomes the last id that was not selected before; when the
// change only removed rows it falls back to the last remaining id.
func (s *SelectionTracker) OnSelectionChange(ids []string) bool {
	if s.active != nil && !s.active() {
		return false
	}

	prev := make(map[string]bool, len(s.ids))
	for _, id := range s.ids {
		prev[id] = true
	}

	seen := make(map[string]bool, len(ids))
	next := make([]string, 0, len(ids))
	added := ""
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		next = append(next, id)
		if !prev[id] {
			added = id
		}
	}

	s.ids = next
	switch {
	case added != "":
		s.last = added
	case len(next) > 0:
		s.last = next[len(next)-1]
	default:
		s.last = ""
	}
	return true
}

// Selected returns the selected ids in selection order.
func (s *SelectionTracker) Selected() []string {
	return append([]string(nil), s.ids...)
}

// IsSelected reports whether id is selected.
func (s *SelectionTracker) IsSelected(id string) bool {
	return contains(s.ids, id)
}

// LastSelected returns the most recently added id, or "".
func (s *SelectionTracker) LastSelected() string { return s.last }

// Len returns the number of selected rows.
func (s *SelectionTracker) Len() int { return len(s.ids) }

// Clear empties the selection.
func (s *SelectionTracker) Clear() {
	s.ids = nil
	s.last = ""
}
