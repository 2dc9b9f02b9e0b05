package core

// table.go composes the read path (search and column filters over the
// loaded rows) with the write path (modes, edit tracking, selection and the
// validation gate) for one table of one user's workspace.
//
// Every method takes the view's lock, so events from one user apply in
// arrival order. Backend writes are made while holding the lock; the
// reference-data prefetch started by bulk update runs in the background.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrRowNotSelected is returned when a remark is edited on an unselected row.
var ErrRowNotSelected = errors.New("row not selected")

const (
	confirmSave   = "save"
	confirmRetire = "retire"
)

// TableOptions carries the collaborators shared by every view of a workspace.
type TableOptions struct {
	Policy   CancelPolicy
	Auditor  *Auditor
	Recorder Recorder
}

// Focus names the cell the client should put into edit state.
type Focus struct {
	RowID string `json:"rowId"`
	Field string `json:"field"`
}

// QueryParams selects the visible rows.
type QueryParams struct {
	Search  string
	Filters ColumnFilters
	Page    int // 1-based; 0 means 1
	Size    int // 0 returns every row
}

// QueryResult is the client-facing state of a table view.
type QueryResult struct {
	Table            string              `json:"table"`
	Status           string              `json:"status,omitempty"`
	Mode             Mode                `json:"mode"`
	ReadOnly         bool                `json:"readOnly"`
	Rows             []Row               `json:"rows"`
	Total            int                 `json:"total"`
	Page             int                 `json:"page"`
	Size             int                 `json:"size"`
	EditedCount      int                 `json:"editedCount"`
	EditedCells      map[string][]string `json:"editedCells,omitempty"`
	Selected         []string            `json:"selected,omitempty"`
	Focus            *Focus              `json:"focus,omitempty"`
	ReferenceLoading bool                `json:"referenceLoading"`
	Options          map[string][]string `json:"options,omitempty"`
	LoadedAt         time.Time           `json:"loadedAt"`
}

// TableView is the engine state of one table.
type TableView struct {
	mu sync.Mutex

	def    TableDefinition
	be     *backendRef
	status string
	opts   TableOptions

	rows     []Row
	index    map[string]int
	loadedAt time.Time

	modes     *ModeController
	edits     *RowEditTracker
	selection *SelectionTracker
	remarks   map[string]string
	pending   string

	refs       References
	refsLoaded bool
	refsGen    int
	refsDone   chan struct{}
}

// NewTableView creates an unloaded view of def. An empty status selects the
// table's default; the read-only status disables every mode.
func NewTableView(def TableDefinition, be Backend, status string, opts TableOptions) *TableView {
	return newTableView(def, newBackendRef(be), status, opts)
}

func newTableView(def TableDefinition, be *backendRef, status string, opts TableOptions) *TableView {
	if status == "" {
		status = def.DefaultStatus
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}

	v := &TableView{
		def:        def,
		be:         be,
		status:     status,
		opts:       opts,
		index:      make(map[string]int),
		modes:      NewModeController(),
		edits:      NewRowEditTracker(def.TrackedFields()),
		remarks:    make(map[string]string),
		refsLoaded: def.LoadReferences == nil,
	}
	v.selection = NewSelectionTracker(func() bool { return v.modes.Active(ModeRetire) })

	v.modes.OnExit(ModeBulkUpdate, func() {
		v.edits.Clear()
		v.pending = ""
	})
	v.modes.OnExit(ModeRetire, func() {
		v.selection.Clear()
		v.remarks = make(map[string]string)
		v.pending = ""
	})
	if def.ReadOnlyView != "" && status == def.ReadOnlyView {
		v.modes.Disable()
	}
	return v
}

// Definition returns the table definition.
func (v *TableView) Definition() TableDefinition { return v.def }

// Status returns the status partition the view shows.
func (v *TableView) Status() string { return v.status }

// Load replaces the canonical rows with a fresh copy from the backend.
// Drafts and selection are kept; they are keyed by row id.
func (v *TableView) Load(ctx context.Context) error {
	rows, err := Run(ctx, v.opts.Policy, func(ctx context.Context) ([]Row, error) {
		return v.def.Load(ctx, v.be.Load(), ListQuery{Status: v.status})
	})
	if err != nil {
		slog.Error("table load failed", "table", v.def.Info.Key, "status", v.status, "error", err)
		return &RequestError{Op: "load " + v.def.Info.Key, Message: "목록을 불러오지 못했습니다.", Err: err}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.setRows(rows)
	return nil
}

func (v *TableView) setRows(rows []Row) {
	v.rows = rows
	v.index = make(map[string]int, len(rows))
	for i, r := range rows {
		v.index[r.Text(v.def.Info.IDField)] = i
	}
	v.loadedAt = time.Now()
}

// Rows returns a copy of the canonical rows.
func (v *TableView) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Row, len(v.rows))
	for i, r := range v.rows {
		out[i] = r.Clone()
	}
	return out
}

// display returns the row as the user sees it: its draft in bulk update,
// its edited remark in retire mode.
func (v *TableView) display(r Row) Row {
	id := r.Text(v.def.Info.IDField)
	if d, ok := v.edits.Draft(id); ok {
		return d
	}
	if spec := v.def.Retire; spec != nil && spec.RemarkField != "" {
		if remark, ok := v.remarks[id]; ok {
			shown := r.Clone()
			shown[spec.RemarkField] = remark
			return shown
		}
	}
	return r
}

// Query applies search and column filters to the displayed rows and
// returns the requested page with the view's write-path state.
func (v *TableView) Query(p QueryParams) QueryResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	match := CompileSearch(p.Search, v.def.SearchFields())
	active := p.Filters.Active(v.def.FilterFields())

	visible := make([]Row, 0, len(v.rows))
	for _, r := range v.rows {
		shown := v.display(r)
		if match(shown) && active.Match(shown) {
			visible = append(visible, shown)
		}
	}

	res := v.stateLocked()
	res.Total = len(visible)
	res.Page, res.Size = 1, p.Size
	if p.Page > 1 {
		res.Page = p.Page
	}
	if p.Size > 0 {
		start := (res.Page - 1) * p.Size
		if start > len(visible) {
			start = len(visible)
		}
		end := start + p.Size
		if end > len(visible) {
			end = len(visible)
		}
		visible = visible[start:end]
	}
	res.Rows = make([]Row, len(visible))
	for i, r := range visible {
		res.Rows[i] = r.Clone()
	}
	return res
}

// State returns the write-path state without rows.
func (v *TableView) State() QueryResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *TableView) stateLocked() QueryResult {
	res := QueryResult{
		Table:            v.def.Info.Key,
		Status:           v.status,
		Mode:             v.modes.Mode(),
		ReadOnly:         v.modes.Disabled(),
		EditedCount:      v.edits.EditedCount(),
		Selected:         v.selection.Selected(),
		ReferenceLoading: v.modes.Active(ModeBulkUpdate) && !v.refsLoaded,
		LoadedAt:         v.loadedAt,
	}
	if res.EditedCount > 0 {
		res.EditedCells = v.edits.EditedCells()
	}
	res.Focus = v.focusLocked()
	if v.refsLoaded && (len(v.refs.Teams) > 0 || len(v.refs.Positions) > 0) {
		res.Options = map[string][]string{
			"teamName": v.refs.Teams,
			"empPos":   v.refs.Positions,
		}
	}
	return res
}

func (v *TableView) focusLocked() *Focus {
	spec := v.def.Retire
	last := v.selection.LastSelected()
	if spec == nil || spec.FocusField == "" || last == "" {
		return nil
	}
	return &Focus{RowID: last, Field: spec.FocusField}
}

// Mode returns the current mode.
func (v *TableView) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.modes.Mode()
}

// Toggle flips a mode on or off. Entering bulk update starts loading the
// reference data the validation gate needs.
func (v *TableView) Toggle(ctx context.Context, m Mode) (Mode, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if m == ModeRetire && v.def.Retire == nil {
		return v.modes.Mode(), ErrModeDisabled
	}
	if m == ModeBulkUpdate && v.def.SubmitUpdate == nil {
		return v.modes.Mode(), ErrModeDisabled
	}

	was := v.modes.Mode()
	now, err := v.modes.Toggle(m)
	if err != nil {
		return now, err
	}
	if now == ModeBulkUpdate && was != ModeBulkUpdate {
		v.startReferencesLocked(ctx)
	}
	return now, nil
}

func (v *TableView) startReferencesLocked(ctx context.Context) {
	if v.def.LoadReferences == nil {
		v.refsLoaded = true
		return
	}
	v.refsGen++
	gen := v.refsGen
	v.refsLoaded = false
	done := make(chan struct{})
	v.refsDone = done

	ctx = context.WithoutCancel(ctx)
	be := v.be.Load()
	go func() {
		defer close(done)
		refs, err := v.def.LoadReferences(ctx, be)
		if err != nil {
			slog.Warn("reference data load failed", "table", v.def.Info.Key, "error", err)
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		if gen != v.refsGen {
			return
		}
		v.refs = refs
		v.refsLoaded = true
	}()
}

// AwaitReferences blocks until the reference load started by the latest
// bulk-update activation completes, or ctx ends.
func (v *TableView) AwaitReferences(ctx context.Context) error {
	v.mu.Lock()
	done := v.refsDone
	v.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *TableView) rowLocked(id string) (Row, bool) {
	i, ok := v.index[id]
	if !ok {
		return nil, false
	}
	return v.rows[i], true
}

// RecordChange commits an edited row from the grid. Only directly editable
// fields are taken from next; a changed owner pulls position and team from
// the employee directory. Returns the fields that changed.
func (v *TableView) RecordChange(rowID string, next Row) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.modes.Active(ModeBulkUpdate) {
		return nil, ErrModeInactive
	}
	base, ok := v.rowLocked(rowID)
	if !ok {
		return nil, ErrRowNotFound
	}
	current := base
	if d, ok := v.edits.Draft(rowID); ok {
		current = d
	}

	merged := current.Clone()
	for field, value := range next {
		if v.def.CellEditable(field) {
			merged[field] = value
		}
	}

	owner := v.def.OwnerField
	if owner != "" && v.def.ApplyOwner != nil && Stringify(current[owner]) != Stringify(merged[owner]) {
		if e, err := v.refs.Directory.ResolveName(TrimText(merged[owner])); err == nil {
			v.def.ApplyOwner(merged, e)
		}
	}

	return v.edits.RecordChange(rowID, current, merged), nil
}

// EditCell sets one field of a row.
func (v *TableView) EditCell(rowID, field string, value any) ([]string, error) {
	if !v.def.CellEditable(field) {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
	}
	return v.RecordChange(rowID, Row{field: value})
}

// Select replaces the retire-mode selection. Changes are ignored outside
// retire mode; the returned focus names the remark cell of the last
// selected row.
func (v *TableView) Select(ids []string) (*Focus, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := v.index[id]; ok {
			known = append(known, id)
		}
	}
	if !v.selection.OnSelectionChange(known) {
		return nil, false
	}
	for id := range v.remarks {
		if !v.selection.IsSelected(id) {
			delete(v.remarks, id)
		}
	}
	return v.focusLocked(), true
}

// SetRemark edits the retire remark of a selected row.
func (v *TableView) SetRemark(rowID, remark string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	spec := v.def.Retire
	if spec == nil || spec.RemarkField == "" || !v.modes.Active(ModeRetire) {
		return ErrModeInactive
	}
	if !v.selection.IsSelected(rowID) {
		return ErrRowNotSelected
	}
	v.remarks[rowID] = remark
	return nil
}

func (v *TableView) remarkLocked(id string) string {
	if r, ok := v.remarks[id]; ok {
		return strings.TrimSpace(r)
	}
	if row, ok := v.rowLocked(id); ok && v.def.Retire != nil && v.def.Retire.RemarkField != "" {
		return TrimText(row[v.def.Retire.RemarkField])
	}
	return ""
}

func (v *TableView) validationContextLocked() ValidationContext {
	return ValidationContext{
		Def:             v.def,
		ReferenceLoaded: v.refsLoaded,
		Directory:       v.refs.Directory,
		Originals:       v.originalsLocked(),
		ExistingUnique:  v.refs.Unique,
	}
}

func (v *TableView) originalsLocked() map[string]Row {
	out := make(map[string]Row, v.edits.EditedCount())
	for _, d := range v.edits.Drafts() {
		if r, ok := v.rowLocked(d.RowID); ok {
			out[d.RowID] = r
		}
	}
	return out
}

// PrepareSave validates the drafts and opens the save confirmation.
func (v *TableView) PrepareSave() (Confirmation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.modes.Active(ModeBulkUpdate) {
		return Confirmation{}, ErrModeInactive
	}
	drafts := v.edits.Drafts()
	if err := ValidateDrafts(drafts, v.validationContextLocked()); err != nil {
		v.opts.Recorder.ValidationFailed(v.def.Info.Key, string(ActionBulkUpdate))
		return Confirmation{}, err
	}
	v.pending = confirmSave
	return Confirmation{
		Action:  confirmSave,
		Count:   len(drafts),
		Message: fmt.Sprintf(v.def.SaveConfirmMessage, len(drafts)),
	}, nil
}

// SubmitSave re-validates, sends one bulk update with every draft and, on
// success, merges the drafts into the canonical rows and returns to viewing.
// On failure drafts and mode are kept so the user can retry.
func (v *TableView) SubmitSave(ctx context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending != confirmSave {
		return 0, ErrNotConfirmed
	}
	v.pending = ""

	drafts := v.edits.Drafts()
	if err := ValidateDrafts(drafts, v.validationContextLocked()); err != nil {
		v.opts.Recorder.ValidationFailed(v.def.Info.Key, string(ActionBulkUpdate))
		return 0, err
	}

	payload := make([]Row, 0, len(drafts))
	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		payload = append(payload, v.def.BuildUpdate(d.RowID, d.Row, v.refs))
		ids = append(ids, d.RowID)
	}

	err := RunErr(ctx, v.opts.Policy, func(ctx context.Context) error {
		return v.def.SubmitUpdate(ctx, v.be.Load(), payload)
	})
	if err != nil {
		v.opts.Recorder.Submit(v.def.Info.Key, string(ActionBulkUpdate), OutcomeFailure)
		slog.Error("bulk update failed", "table", v.def.Info.Key, "rows", len(payload), "error", err)
		return 0, &RequestError{Op: "bulk update " + v.def.Info.Key, Message: v.def.UpdateFailureMessage, Err: err}
	}

	edited := v.edits.EditedCells()
	for _, d := range drafts {
		i, ok := v.index[d.RowID]
		if !ok {
			continue
		}
		if v.def.MergeDraft != nil {
			v.rows[i] = v.def.MergeDraft(v.rows[i], d.Row, v.refs)
		} else {
			v.rows[i] = d.Row.Clone()
		}
	}
	v.modes.Reset()

	v.opts.Recorder.Submit(v.def.Info.Key, string(ActionBulkUpdate), OutcomeSuccess)
	v.opts.Auditor.Log(ctx, AuditLogParams{
		Action:   ActionBulkUpdate,
		TableKey: v.def.Info.Key,
		RowKeys:  ids,
		Detail:   map[string]any{"fields": edited},
	})
	return len(drafts), nil
}

// PrepareRetire validates the selection and opens the dispose/resign
// confirmation.
func (v *TableView) PrepareRetire() (Confirmation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	spec := v.def.Retire
	if spec == nil {
		return Confirmation{}, ErrModeDisabled
	}
	selected := v.selection.Selected()
	if err := ValidateRetire(spec, v.modes.Active(ModeRetire), selected, v.remarkLocked); err != nil {
		v.opts.Recorder.ValidationFailed(v.def.Info.Key, string(spec.Action))
		return Confirmation{}, err
	}
	v.pending = confirmRetire
	return Confirmation{
		Action:  string(spec.Action),
		Count:   len(selected),
		Message: fmt.Sprintf(spec.ConfirmMessage, len(selected)),
	}, nil
}

// SubmitRetire sends one dispose/resign request covering every selected
// row. On success the rows take the retired status and the view returns
// to viewing.
func (v *TableView) SubmitRetire(ctx context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	spec := v.def.Retire
	if spec == nil {
		return 0, ErrModeDisabled
	}
	if v.pending != confirmRetire {
		return 0, ErrNotConfirmed
	}
	v.pending = ""

	selected := v.selection.Selected()
	if err := ValidateRetire(spec, v.modes.Active(ModeRetire), selected, v.remarkLocked); err != nil {
		v.opts.Recorder.ValidationFailed(v.def.Info.Key, string(spec.Action))
		return 0, err
	}

	remarks := make(map[string]string, len(selected))
	payload := make([]Row, 0, len(selected))
	for _, id := range selected {
		remarks[id] = v.remarkLocked(id)
		payload = append(payload, spec.BuildPayload(id, remarks[id]))
	}

	err := RunErr(ctx, v.opts.Policy, func(ctx context.Context) error {
		return spec.Submit(ctx, v.be.Load(), payload)
	})
	if err != nil {
		v.opts.Recorder.Submit(v.def.Info.Key, string(spec.Action), OutcomeFailure)
		slog.Error("retire request failed", "table", v.def.Info.Key, "action", spec.Action, "rows", len(payload), "error", err)
		return 0, &RequestError{Op: string(spec.Action) + " " + v.def.Info.Key, Message: spec.FailureMessage, Err: err}
	}

	for _, id := range selected {
		i, ok := v.index[id]
		if !ok {
			continue
		}
		row := v.rows[i].Clone()
		row[v.def.Info.StatusField] = spec.StatusValue
		if spec.RemarkField != "" {
			row[spec.RemarkField] = remarks[id]
		}
		v.rows[i] = row
	}
	v.modes.Reset()

	v.opts.Recorder.Submit(v.def.Info.Key, string(spec.Action), OutcomeSuccess)
	detail := map[string]any(nil)
	if spec.RemarkField != "" {
		detail = map[string]any{"remarks": remarks}
	}
	v.opts.Auditor.Log(ctx, AuditLogParams{
		Action:   spec.Action,
		TableKey: v.def.Info.Key,
		RowKeys:  selected,
		Detail:   detail,
	})
	return len(selected), nil
}

// Cancel closes a pending confirmation without sending anything.
func (v *TableView) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = ""
}
