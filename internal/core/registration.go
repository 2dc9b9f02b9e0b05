package core

// registration.go holds the multi-row "register new records" form.
//
// A session starts with one blank row and may be seeded once from a
// spreadsheet import. Every row carries a session-local id that never
// collides with backend identifiers. Identifiers are allocated when a row's
// category is chosen and handed back when the category changes or the row
// is removed. Unique keys are checked as they are typed against the server
// snapshot and the rest of the form, and again at submit.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNoRegistration is returned for tables without a registration form.
var ErrNoRegistration = errors.New("table has no registration form")

const dateFormatMessage = "날짜 형식이 올바르지 않습니다."

// FormMeta is the per-row metadata kept beside the entity.
type FormMeta struct {
	Errors       map[string]string `json:"errors,omitempty"`
	ImportErrors map[string]string `json:"importErrors,omitempty"`
	Allocated    string            `json:"allocated,omitempty"` // category the current id came from
}

// FormRow is one row of a registration form.
type FormRow struct {
	SessionRowID string   `json:"sessionRowId"`
	Entity       Row      `json:"entity"`
	Meta         FormMeta `json:"meta"`
}

func (r *FormRow) setError(field, msg string) {
	if r.Meta.Errors == nil {
		r.Meta.Errors = make(map[string]string)
	}
	r.Meta.Errors[field] = msg
}

func (r *FormRow) clearError(field string) {
	delete(r.Meta.Errors, field)
}

// RegistrationState is the client-facing view of a session.
type RegistrationState struct {
	ID        string    `json:"id"`
	Table     string    `json:"table"`
	Rows      []FormRow `json:"rows"`
	Selected  []string  `json:"selected,omitempty"`
	Seeded    bool      `json:"seeded"`
	Submitted bool      `json:"submitted"`
	Message   string    `json:"message,omitempty"`
}

// RegistrationSession is one open registration form.
type RegistrationSession struct {
	mu sync.Mutex

	id    string
	def   TableDefinition
	spec  *RegistrationSpec
	be    *backendRef
	alloc *IDAllocator
	opts  TableOptions

	rows      []FormRow
	selected  []string
	seeded    bool
	submitted bool
	message   string

	existing  map[string]bool   // server unique keys, every variant
	claims    map[string]string // session row id -> normalized unique key
	directory *Directory

	lastUsed time.Time
}

// NewRegistrationSession opens a form for def with a single blank row.
func NewRegistrationSession(def TableDefinition, be Backend, opts TableOptions) (*RegistrationSession, error) {
	return newRegistrationSession(def, newBackendRef(be), opts)
}

func newRegistrationSession(def TableDefinition, be *backendRef, opts TableOptions) (*RegistrationSession, error) {
	spec := def.Registration
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRegistration, def.Info.Key)
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}

	s := &RegistrationSession{
		id:       uuid.NewString(),
		def:      def,
		spec:     spec,
		be:       be,
		opts:     opts,
		existing: make(map[string]bool),
		claims:   make(map[string]string),
		lastUsed: time.Now(),
	}
	if spec.NextID != nil {
		s.alloc = NewIDAllocator(func(ctx context.Context, category string) (string, error) {
			return Run(ctx, opts.Policy, func(ctx context.Context) (string, error) {
				return spec.NextID(ctx, be.Load(), category)
			})
		})
	}
	s.rows = []FormRow{s.blankRow()}
	return s, nil
}

// Open loads the unique-key snapshot and the employee directory. A failed
// load leaves the corresponding check empty rather than blocking the form.
func (s *RegistrationSession) Open(ctx context.Context) error {
	var (
		existing []string
		empRows  []Row
	)
	be := s.be.Load()
	err := RunErr(ctx, s.opts.Policy, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		if s.spec.LoadExisting != nil {
			g.Go(func() error {
				vals, err := s.spec.LoadExisting(gctx, be)
				if err != nil {
					slog.Warn("registration unique snapshot load failed", "table", s.def.Info.Key, "error", err)
					return nil
				}
				existing = vals
				return nil
			})
		}
		if s.spec.OwnerField != "" {
			g.Go(func() error {
				rows, err := be.ListEmployees(gctx)
				if err != nil {
					slog.Warn("registration directory load failed", "table", s.def.Info.Key, "error", err)
					return nil
				}
				empRows = rows
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range existing {
		for _, k := range s.variants(v) {
			s.existing[k] = true
		}
	}
	s.directory = NewDirectory(empRows)
	return nil
}

// ID returns the session identifier.
func (s *RegistrationSession) ID() string { return s.id }

// Table returns the key of the table the session registers into.
func (s *RegistrationSession) Table() string { return s.def.Info.Key }

// LastUsed reports when the session last handled an event.
func (s *RegistrationSession) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *RegistrationSession) touch() {
	s.lastUsed = time.Now()
}

func (s *RegistrationSession) normalize(v string) string {
	if s.spec.Normalize != nil {
		return s.spec.Normalize(v)
	}
	return strings.TrimSpace(v)
}

func (s *RegistrationSession) variants(v string) []string {
	n := s.normalize(v)
	if n == "" {
		return nil
	}
	if s.spec.KeyVariants != nil {
		return s.spec.KeyVariants(n)
	}
	return []string{n}
}

func (s *RegistrationSession) onServer(v string) bool {
	for _, k := range s.variants(v) {
		if s.existing[k] {
			return true
		}
	}
	return false
}

func (s *RegistrationSession) isDate(field string) bool {
	spec, ok := s.def.Field(field)
	return ok && spec.Type == FieldDate
}

func (s *RegistrationSession) blankRow() FormRow {
	entity := make(Row, len(s.spec.Template))
	for _, f := range s.spec.Template {
		if s.isDate(f) {
			entity[f] = nil
		} else {
			entity[f] = ""
		}
	}
	return FormRow{SessionRowID: uuid.NewString(), Entity: entity}
}

// State returns a copy of the session for the client.
func (s *RegistrationSession) State() RegistrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *RegistrationSession) stateLocked() RegistrationState {
	rows := make([]FormRow, len(s.rows))
	for i, r := range s.rows {
		cp := FormRow{SessionRowID: r.SessionRowID, Entity: r.Entity.Clone(), Meta: FormMeta{Allocated: r.Meta.Allocated}}
		if len(r.Meta.Errors) > 0 {
			cp.Meta.Errors = make(map[string]string, len(r.Meta.Errors))
			for k, v := range r.Meta.Errors {
				cp.Meta.Errors[k] = v
			}
		}
		if len(r.Meta.ImportErrors) > 0 {
			cp.Meta.ImportErrors = make(map[string]string, len(r.Meta.ImportErrors))
			for k, v := range r.Meta.ImportErrors {
				cp.Meta.ImportErrors[k] = v
			}
		}
		rows[i] = cp
	}
	return RegistrationState{
		ID:        s.id,
		Table:     s.def.Info.Key,
		Rows:      rows,
		Selected:  append([]string(nil), s.selected...),
		Seeded:    s.seeded,
		Submitted: s.submitted,
		Message:   s.message,
	}
}

func (s *RegistrationSession) find(rowID string) (*FormRow, int) {
	for i := range s.rows {
		if s.rows[i].SessionRowID == rowID {
			return &s.rows[i], i
		}
	}
	return nil, -1
}

func (s *RegistrationSession) writable() error {
	if s.submitted {
		return ErrSessionClosed
	}
	return nil
}

// AddRow appends a blank row and clears the selection.
func (s *RegistrationSession) AddRow() (FormRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return FormRow{}, err
	}
	row := s.blankRow()
	s.rows = append(s.rows, row)
	s.selected = nil
	s.message = ""
	return row, nil
}

// SetSelection records which rows are checked. Unknown row ids are dropped.
func (s *RegistrationSession) SetSelection(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return err
	}
	s.selected = s.knownRowsLocked(ids)
	return nil
}

func (s *RegistrationSession) knownRowsLocked(ids []string) []string {
	var out []string
	for _, id := range ids {
		if r, _ := s.find(id); r != nil && !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// RemoveSelected removes the given rows, or the current selection when ids
// is empty. Allocated identifiers go back to the allocator and unique-key
// claims are dropped.
func (s *RegistrationSession) RemoveSelected(ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		ids = s.selected
	}
	ids = s.knownRowsLocked(ids)
	if len(ids) == 0 {
		s.message = ErrNothingSelected.Error()
		return 0, ErrNothingSelected
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.rows[:0:0]
	removed := 0
	for _, r := range s.rows {
		if !drop[r.SessionRowID] {
			kept = append(kept, r)
			continue
		}
		s.releaseLocked(&r)
		delete(s.claims, r.SessionRowID)
		removed++
	}
	s.rows = kept
	s.selected = nil
	s.message = ""
	return removed, nil
}

func (s *RegistrationSession) releaseLocked(r *FormRow) {
	if s.alloc == nil || r.Meta.Allocated == "" {
		return
	}
	s.alloc.Release(r.Meta.Allocated, r.Entity.Text(s.spec.IDField))
	r.Meta.Allocated = ""
	if s.spec.IDField == s.spec.UniqueField {
		delete(s.claims, r.SessionRowID)
	}
}

// Seed replaces the form with imported rows. It is accepted once per
// session. importErrors[i] holds cell errors found while parsing row i.
// Seeded rows are hydrated: the owner fills position and team, rows with a
// category but no identifier get one allocated.
func (s *RegistrationSession) Seed(ctx context.Context, rows []Row, importErrors []map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return err
	}
	if s.seeded {
		return ErrAlreadySeeded
	}
	s.seeded = true

	for i := range s.rows {
		s.releaseLocked(&s.rows[i])
	}
	s.claims = make(map[string]string)
	s.selected = nil
	s.message = ""

	if len(rows) == 0 {
		s.rows = []FormRow{s.blankRow()}
		return nil
	}

	s.rows = make([]FormRow, 0, len(rows))
	for i, in := range rows {
		fr := s.blankRow()
		for _, f := range s.spec.Template {
			if v, ok := in[f]; ok {
				fr.Entity[f] = v
			}
		}
		if i < len(importErrors) && len(importErrors[i]) > 0 {
			fr.Meta.ImportErrors = importErrors[i]
		}
		s.rows = append(s.rows, fr)
	}

	if s.spec.ClearDuplicates && s.spec.UniqueField != "" {
		if n := s.clearDuplicatesLocked(); n > 0 && s.spec.ClearedMessage != "" {
			s.message = fmt.Sprintf(s.spec.ClearedMessage, n)
		}
	}

	for i := range s.rows {
		r := &s.rows[i]
		if s.spec.UniqueField != "" {
			s.checkUniqueLocked(r, r.Entity.Text(s.spec.UniqueField))
		}
		if s.spec.OwnerField != "" && HasText(r.Entity[s.spec.OwnerField]) {
			s.fillOwnerLocked(r)
		}
	}
	taken := s.takenIDsLocked()
	for i := range s.rows {
		r := &s.rows[i]
		if s.spec.CategoryField != "" && HasText(r.Entity[s.spec.CategoryField]) && !HasText(r.Entity[s.spec.IDField]) {
			s.allocateFreeLocked(ctx, r, TrimText(r.Entity[s.spec.CategoryField]), taken)
		}
	}
	return nil
}

// clearDuplicatesLocked blanks unique keys already on the server or seen
// in an earlier row and returns how many were blanked.
func (s *RegistrationSession) clearDuplicatesLocked() int {
	field := s.spec.UniqueField
	seen := make(map[string]bool, len(s.rows))
	cleared := 0
	for i := range s.rows {
		r := &s.rows[i]
		keys := s.variants(r.Entity.Text(field))
		if len(keys) == 0 {
			continue
		}
		dup := false
		for _, k := range keys {
			dup = dup || s.existing[k] || seen[k]
		}
		if dup {
			r.Entity[field] = ""
			delete(r.Meta.ImportErrors, field)
			cleared++
			continue
		}
		for _, k := range keys {
			seen[k] = true
		}
	}
	return cleared
}

// SetField applies an edit to one cell, routing category, unique-key and
// owner fields to their dedicated handlers.
func (s *RegistrationSession) SetField(ctx context.Context, rowID, field string, value any) error {
	switch field {
	case "":
		return ErrFieldNotEditable
	case s.spec.CategoryField:
		return s.SetCategory(ctx, rowID, Stringify(value))
	case s.spec.UniqueField:
		return s.SetUniqueKey(rowID, Stringify(value))
	case s.spec.OwnerField:
		return s.SetOwner(rowID, Stringify(value))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return err
	}
	if !contains(s.spec.Template, field) {
		return fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
	}
	r, _ := s.find(rowID)
	if r == nil {
		return ErrRowNotFound
	}
	s.message = ""

	if field == s.spec.IDField && r.Meta.Allocated != "" && Stringify(value) != r.Entity.Text(field) {
		s.releaseLocked(r)
	}

	r.clearError(field)
	delete(r.Meta.ImportErrors, field)
	if s.isDate(field) {
		text := TrimText(value)
		switch {
		case text == "":
			r.Entity[field] = nil
		case IsDate(text):
			r.Entity[field] = FormatDate(text, DateLayout)
		default:
			r.Entity[field] = text
			r.setError(field, dateFormatMessage)
		}
		return nil
	}
	r.Entity[field] = value
	return nil
}

// SetCategory changes a row's category. An identifier allocated under the
// previous category is released; a row without an identifier gets one
// allocated under the new category. A blank category clears the identifier.
func (s *RegistrationSession) SetCategory(ctx context.Context, rowID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return err
	}
	r, _ := s.find(rowID)
	if r == nil {
		return ErrRowNotFound
	}
	field := s.spec.CategoryField
	if field == "" {
		return fmt.Errorf("%w: %s has no category", ErrFieldNotEditable, s.def.Info.Key)
	}
	s.message = ""
	r.clearError(field)

	category = strings.TrimSpace(category)
	prev := TrimText(r.Entity[field])
	if prev != category && r.Meta.Allocated != "" {
		s.releaseLocked(r)
		r.Entity[s.spec.IDField] = ""
	}
	r.Entity[field] = category

	if category == "" {
		s.releaseLocked(r)
		r.Entity[s.spec.IDField] = ""
		return nil
	}
	if HasText(r.Entity[s.spec.IDField]) {
		return nil
	}
	if !s.allocateFreeLocked(ctx, r, category, s.takenIDsLocked()) {
		s.message = fmt.Sprintf("%s 생성 중 오류가 발생했습니다.", s.def.Label(s.spec.IDField))
	}
	return nil
}

func (s *RegistrationSession) allocateLocked(ctx context.Context, r *FormRow, category string) bool {
	if s.alloc == nil {
		return false
	}
	id, err := s.alloc.Allocate(ctx, category)
	if err != nil || id == "" {
		s.opts.Recorder.Allocation(category, OutcomeFailure)
		slog.Warn("id allocation failed", "table", s.def.Info.Key, "category", category, "error", err)
		r.Entity[s.spec.IDField] = ""
		return false
	}
	s.opts.Recorder.Allocation(category, OutcomeSuccess)
	r.Entity[s.spec.IDField] = id
	r.Meta.Allocated = category
	r.clearError(s.spec.IDField)
	return true
}

// idKeys returns the comparison keys of an identifier. An identifier that
// is also the unique key compares through every unique-key variant.
func (s *RegistrationSession) idKeys(id string) []string {
	if s.spec.IDField == s.spec.UniqueField {
		return s.variants(id)
	}
	if id = strings.ToUpper(strings.TrimSpace(id)); id != "" {
		return []string{id}
	}
	return nil
}

// takenIDsLocked returns the identifiers an allocation must not hand out:
// every identifier already in the form and, when the identifier is the
// unique key, every key on the server.
func (s *RegistrationSession) takenIDsLocked() map[string]bool {
	taken := make(map[string]bool, len(s.rows))
	for _, r := range s.rows {
		for _, k := range s.idKeys(r.Entity.Text(s.spec.IDField)) {
			taken[k] = true
		}
	}
	if s.spec.IDField == s.spec.UniqueField {
		for k := range s.existing {
			taken[k] = true
		}
	}
	return taken
}

// allocateFreeLocked allocates an identifier for r that is not in taken,
// discarding any allocation that collides. Each discarded identifier is a
// distinct member of taken, so len(taken)+1 attempts always suffice. The
// identifier given to r is added to taken.
func (s *RegistrationSession) allocateFreeLocked(ctx context.Context, r *FormRow, category string, taken map[string]bool) bool {
	for attempts := len(taken) + 1; attempts > 0; attempts-- {
		if !s.allocateLocked(ctx, r, category) {
			return false
		}
		id := r.Entity.Text(s.spec.IDField)
		keys := s.idKeys(id)
		if !anyKey(taken, keys) {
			for _, k := range keys {
				taken[k] = true
			}
			if s.spec.IDField == s.spec.UniqueField {
				s.claims[r.SessionRowID] = s.normalize(id)
			}
			return true
		}
		slog.Debug("allocated id already taken", "table", s.def.Info.Key, "category", category, "id", id)
		r.Entity[s.spec.IDField] = ""
		r.Meta.Allocated = ""
	}
	r.setError(s.spec.IDField, s.label(s.spec.IDField)+" 생성 실패")
	return false
}

func anyKey(set map[string]bool, keys []string) bool {
	for _, k := range keys {
		if set[k] {
			return true
		}
	}
	return false
}

// SetUniqueKey stores a typed unique key and checks it against the server
// snapshot and the rest of the form. A duplicate marks the cell and is not
// claimed.
func (s *RegistrationSession) SetUniqueKey(rowID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return err
	}
	r, _ := s.find(rowID)
	if r == nil {
		return ErrRowNotFound
	}
	s.message = ""
	if s.spec.UniqueField == s.spec.IDField && r.Meta.Allocated != "" && raw != r.Entity.Text(s.spec.IDField) {
		s.releaseLocked(r)
	}
	r.Entity[s.spec.UniqueField] = raw
	delete(r.Meta.ImportErrors, s.spec.UniqueField)
	s.checkUniqueLocked(r, raw)
	return nil
}

func (s *RegistrationSession) checkUniqueLocked(r *FormRow, raw string) {
	field := s.spec.UniqueField
	delete(s.claims, r.SessionRowID)

	next := s.normalize(raw)
	if next == "" {
		r.clearError(field)
		return
	}
	if s.onServer(next) {
		r.setError(field, s.spec.ServerDuplicateMessage)
		return
	}
	for rid, claimed := range s.claims {
		if rid != r.SessionRowID && claimed == next {
			r.setError(field, s.spec.LocalDuplicateMessage)
			return
		}
	}
	s.claims[r.SessionRowID] = next
	r.clearError(field)
}

// SetOwner assigns the owning employee by id and copies position and team
// from the directory (blank when the id is unknown).
func (s *RegistrationSession) SetOwner(rowID, empID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return err
	}
	r, _ := s.find(rowID)
	if r == nil {
		return ErrRowNotFound
	}
	s.message = ""
	r.clearError(s.spec.OwnerField)
	r.Entity[s.spec.OwnerField] = strings.TrimSpace(empID)
	s.fillOwnerLocked(r)
	return nil
}

func (s *RegistrationSession) fillOwnerLocked(r *FormRow) {
	e, _ := s.directory.ByID(r.Entity.Text(s.spec.OwnerField))
	r.Entity["empPos"] = e.EmpPos
	r.Entity["teamName"] = e.TeamName
}

func (s *RegistrationSession) label(field string) string {
	if spec, ok := s.def.Field(field); ok && spec.CreateLabel != "" {
		return spec.CreateLabel
	}
	return s.def.Label(field)
}

// fail records a row-level rejection as the form's bottom message.
func (s *RegistrationSession) fail(r *FormRow, field, cellMsg, format string, args ...any) error {
	if cellMsg != "" {
		r.setError(field, cellMsg)
	}
	ve := invalid(r.SessionRowID, field, format, args...)
	s.message = ve.Message
	return ve
}

func (s *RegistrationSession) validateLocked() error {
	local := make(map[string]bool, len(s.rows))
	for i := range s.rows {
		r := &s.rows[i]
		n := i + 1

		if len(r.Meta.ImportErrors) > 0 {
			return s.fail(r, "", "", "%d행: 엑셀 형식 오류가 있습니다.", n)
		}

		for _, f := range s.spec.Template {
			spec, ok := s.def.Field(f)
			if !ok || !spec.RequiredOnCreate {
				continue
			}
			v := r.Entity[f]
			filled := HasText(v)
			if spec.Type == FieldDate {
				filled = v != nil && IsDate(v)
			}
			if !filled {
				label := s.label(f)
				return s.fail(r, f, label+" 필수", "%d행: %s를 입력하세요.", n, label)
			}
		}

		if s.spec.UniqueField == "" {
			continue
		}
		key := s.normalize(r.Entity.Text(s.spec.UniqueField))
		if key == "" {
			continue
		}
		if s.onServer(key) {
			return s.fail(r, s.spec.UniqueField, s.spec.ServerDuplicateMessage, s.spec.ServerDuplicateRow, n)
		}
		if local[key] {
			return s.fail(r, s.spec.UniqueField, s.spec.LocalDuplicateMessage, s.spec.LocalDuplicateRow, n)
		}
		local[key] = true
	}
	return nil
}

func (s *RegistrationSession) ensureIDsLocked(ctx context.Context) error {
	if s.spec.IDField == "" || s.alloc == nil {
		return nil
	}
	idLabel := s.label(s.spec.IDField)
	taken := s.takenIDsLocked()
	for i := range s.rows {
		r := &s.rows[i]
		if HasText(r.Entity[s.spec.IDField]) {
			continue
		}
		category := s.spec.FixedCategory
		catField := s.spec.IDField
		if s.spec.CategoryField != "" {
			catField = s.spec.CategoryField
			category = TrimText(r.Entity[catField])
		}
		if category == "" {
			catLabel := s.label(catField)
			return s.fail(r, catField, catLabel+"를 선택하세요.", "%d행: %s를 선택하세요.", i+1, catLabel)
		}
		if !s.allocateFreeLocked(ctx, r, category, taken) {
			return s.fail(r, catField, idLabel+" 생성 실패", "%d행: %s 생성에 실패했습니다.", i+1, idLabel)
		}
	}
	return nil
}

// checkIDsLocked rejects the form when two rows hold the same identifier,
// for instance one typed by hand over an earlier allocation.
func (s *RegistrationSession) checkIDsLocked() error {
	if s.spec.IDField == "" {
		return nil
	}
	label := s.label(s.spec.IDField)
	seen := make(map[string]bool, len(s.rows))
	for i := range s.rows {
		r := &s.rows[i]
		keys := s.idKeys(r.Entity.Text(s.spec.IDField))
		if anyKey(seen, keys) {
			return s.fail(r, s.spec.IDField, label+" 중복", "%d행: 중복된 %s입니다.", i+1, label)
		}
		for _, k := range keys {
			seen[k] = true
		}
	}
	return nil
}

// Submit validates every row, fills missing identifiers and sends one
// create request. On failure the form is left as it was so the user can
// fix and resubmit; on success the session is closed.
func (s *RegistrationSession) Submit(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.writable(); err != nil {
		return 0, err
	}
	s.message = ""
	table := s.def.Info.Key

	if len(s.rows) == 0 {
		s.message = ErrNoRows.Error()
		return 0, ErrNoRows
	}
	if err := s.validateLocked(); err != nil {
		s.opts.Recorder.ValidationFailed(table, string(ActionRegister))
		return 0, err
	}
	if err := s.ensureIDsLocked(ctx); err != nil {
		s.opts.Recorder.ValidationFailed(table, string(ActionRegister))
		return 0, err
	}
	if err := s.checkIDsLocked(); err != nil {
		s.opts.Recorder.ValidationFailed(table, string(ActionRegister))
		return 0, err
	}

	payload := make([]Row, 0, len(s.rows))
	ids := make([]string, 0, len(s.rows))
	for _, r := range s.rows {
		payload = append(payload, s.spec.BuildPayload(r.Entity))
		if s.spec.IDField != "" {
			ids = append(ids, r.Entity.Text(s.spec.IDField))
		}
	}

	err := RunErr(ctx, s.opts.Policy, func(ctx context.Context) error {
		return s.spec.Submit(ctx, s.be.Load(), payload)
	})
	if err != nil {
		s.opts.Recorder.Submit(table, string(ActionRegister), OutcomeFailure)
		slog.Error("registration submit failed", "table", table, "rows", len(payload), "error", err)
		s.message = s.spec.FailureMessage
		return 0, &RequestError{Op: "register " + table, Message: s.spec.FailureMessage, Err: err}
	}

	s.submitted = true
	s.opts.Recorder.Submit(table, string(ActionRegister), OutcomeSuccess)
	s.opts.Auditor.Log(ctx, AuditLogParams{
		Action:   ActionRegister,
		TableKey: table,
		RowKeys:  ids,
	})
	return len(payload), nil
}
