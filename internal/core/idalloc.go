package core

// idalloc.go hands out sequential identifiers per category (asset type,
// employee) for registration rows that have not been saved yet.
//
// The backend is asked for the next free identifier once per category; later
// allocations increment locally. Identifiers given back through Release are
// reused smallest first so a user flipping a row's category back and forth
// does not burn numbers.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultIDWidth is the minimum zero-padded width of the numeric part.
const DefaultIDWidth = 3

var (
	errBlankCategory = errors.New("blank category")
	errUnparseableID = errors.New("unparseable id")
)

// NextIDFunc asks the backend for the next free identifier of a category.
type NextIDFunc func(ctx context.Context, category string) (string, error)

// ParsedID is an identifier split into its prefix and numeric part.
type ParsedID struct {
	Prefix string
	Number int
	Width  int
}

// String formats the identifier back, zero-padding the number to Width.
func (p ParsedID) String() string {
	return FormatID(p.Prefix, p.Number, p.Width)
}

// ParseID splits "A012" into prefix "A", number 12 and width 3.
// The prefix is the leading run of non-digits and may not be empty; the
// remainder must be digits.
func ParseID(id string) (ParsedID, bool) {
	id = strings.TrimSpace(id)
	i := strings.IndexFunc(id, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return ParsedID{}, false
	}
	digits := id[i:]
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return ParsedID{}, false
	}
	return ParsedID{Prefix: id[:i], Number: n, Width: len(digits)}, true
}

// FormatID renders prefix followed by n zero-padded to width (minimum
// DefaultIDWidth).
func FormatID(prefix string, n, width int) string {
	if width < DefaultIDWidth {
		width = DefaultIDWidth
	}
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

type categoryState struct {
	primed   bool
	next     ParsedID
	released []ParsedID
}

// IDAllocator allocates identifiers per category. Safe for concurrent use;
// allocations of one allocator are serialized, including the backend fetch.
type IDAllocator struct {
	mu    sync.Mutex
	fetch NextIDFunc
	state map[string]*categoryState
}

// NewIDAllocator creates an allocator backed by fetch.
func NewIDAllocator(fetch NextIDFunc) *IDAllocator {
	return &IDAllocator{
		fetch: fetch,
		state: make(map[string]*categoryState),
	}
}

func (a *IDAllocator) category(name string) *categoryState {
	st, ok := a.state[name]
	if !ok {
		st = &categoryState{}
		a.state[name] = st
	}
	return st
}

// Allocate returns an identifier for category. On failure the returned
// identifier is empty and the error is an *AllocationError; the category
// stays unprimed so the next call fetches again.
func (a *IDAllocator) Allocate(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", &AllocationError{Category: category, Err: errBlankCategory}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.category(category)

	if len(st.released) > 0 {
		sort.Slice(st.released, func(i, j int) bool {
			return st.released[i].Number < st.released[j].Number
		})
		id := st.released[0]
		st.released = st.released[1:]
		return id.String(), nil
	}

	if !st.primed {
		raw, err := a.fetch(ctx, category)
		if err != nil {
			return "", &AllocationError{Category: category, Err: err}
		}
		first, ok := ParseID(raw)
		if !ok {
			return "", &AllocationError{Category: category, Err: fmt.Errorf("%w: %q", errUnparseableID, raw)}
		}
		st.primed = true
		st.next = first
		st.next.Number++
		return first.String(), nil
	}

	id := st.next
	st.next.Number++
	return id.String(), nil
}

// Release returns an identifier to the category's pool. Blank values are
// ignored and releasing the same identifier twice keeps one copy.
func (a *IDAllocator) Release(category, id string) {
	category = strings.TrimSpace(category)
	id = strings.TrimSpace(id)
	if category == "" || id == "" {
		return
	}
	parsed, ok := ParseID(id)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.category(category)
	for _, r := range st.released {
		if r.String() == parsed.String() {
			return
		}
	}
	st.released = append(st.released, parsed)
}

// Released returns the pooled identifiers of a category, smallest first.
func (a *IDAllocator) Released(category string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.state[strings.TrimSpace(category)]
	if !ok {
		return nil
	}
	sorted := append([]ParsedID(nil), st.released...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = p.String()
	}
	return out
}
