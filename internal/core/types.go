package core

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Row is a record as returned by the asset backend, keyed by JSON field name.
// Values are whatever encoding/json produced: string, float64, bool or nil.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Text returns the stringified value of a field. Missing and null values
// stringify to the empty string.
func (r Row) Text(field string) string {
	return Stringify(r[field])
}

// Stringify converts a cell value to the text used for comparison,
// searching and filtering.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}

// FieldType represents the kind of value a column holds.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
)

// FieldSpec describes one column of a table.
type FieldSpec struct {
	Name        string    // JSON field name: "assetSn"
	Label       string    // Display label: "시리얼번호"
	CreateLabel string    // Label in the registration form, if different
	Type        FieldType // Expected data type

	Searchable bool // Contributes to the free-text search corpus
	Filterable bool // Accepts a column filter

	// Editable fields are compared by the edit tracker during bulk update.
	// ReadOnly fields are tracked but never accepted from a cell edit;
	// they change only as a side effect of another edit.
	Editable bool
	ReadOnly bool

	RequiredOnUpdate bool // Must be non-blank in every bulk-update draft
	RequiredOnCreate bool // Must be non-blank in every registration row
}

// TableInfo contains display information about a table.
type TableInfo struct {
	Key         string // Unique identifier: "assets"
	Label       string // Display name: "자산"
	Noun        string // Used in messages: "자산(A001) 제조사를 입력하세요."
	IDField     string // Field holding the row identifier: "assetId"
	StatusField string // Field partitioning active and retired rows
	Permission  string // Permission needed to mutate rows
}

// References is the reference data a table needs while bulk updating.
type References struct {
	Directory *Directory
	Unique    []string // Existing unique-key values on the server
	Teams     []string
	Positions []string
}

// ListQuery selects which rows to load from the backend.
type ListQuery struct {
	Status string
}

// LoadFunc loads the canonical rows of a table.
type LoadFunc func(ctx context.Context, be Backend, q ListQuery) ([]Row, error)

// LoadReferencesFunc loads the reference data used during bulk update.
type LoadReferencesFunc func(ctx context.Context, be Backend) (References, error)

// BuildUpdateFunc converts one draft into its bulk-update payload element.
type BuildUpdateFunc func(id string, draft Row, refs References) Row

// MergeDraftFunc applies a successfully saved draft to the canonical row.
type MergeDraftFunc func(row, draft Row, refs References) Row

// SubmitFunc sends a batch payload to the backend.
type SubmitFunc func(ctx context.Context, be Backend, payload []Row) error

// RetireSpec configures the dispose/resign flow of a table.
type RetireSpec struct {
	Action        AuditAction
	RemarkField   string // Field edited per selected row ("" when the flow has no remark)
	RemarkKeyword string // Text the remark must contain
	StatusValue   string // Status written to retired rows
	FocusField    string // Field the client should open for the last selected row

	BuildPayload func(id, remark string) Row
	Submit       SubmitFunc

	NotActiveMessage string
	NoneMessage      string
	FailureMessage   string
	ConfirmMessage   string // fmt verb %d receives the selected count
}

// RegistrationSpec configures the registration dialog of a table.
type RegistrationSpec struct {
	Template      []string // Fields of a blank FormRow, in display order
	IDField       string   // Identifier to allocate
	CategoryField string   // Field whose value selects the allocator category
	FixedCategory string   // Category used when there is no category field
	UniqueField   string   // Blur-checked for duplicates
	OwnerField    string   // Employee id resolving position and team
	Normalize     func(string) string
	KeyVariants   func(string) []string // Extra server lookup keys of a unique value

	// ImportHeaders maps spreadsheet headers to fields; several headers may
	// feed the same field, the first non-blank wins.
	ImportHeaders []ImportHeader
	Example       []string // Example row of the import template

	// ClearDuplicates blanks imported unique keys that already exist on the
	// server or earlier in the file instead of flagging them. ClearedMessage
	// (fmt verb %d) reports how many were blanked.
	ClearDuplicates bool
	ClearedMessage  string

	LoadExisting func(ctx context.Context, be Backend) ([]string, error)
	NextID       func(ctx context.Context, be Backend, category string) (string, error)
	BuildPayload func(row Row) Row
	Submit       SubmitFunc

	ServerDuplicateMessage string // field error for a value already on the server
	LocalDuplicateMessage  string // field error for a value repeated in the form
	ServerDuplicateRow     string // fmt: %d row
	LocalDuplicateRow      string // fmt: %d row
	FailureMessage         string
}

// ImportHeader binds a spreadsheet column to a field.
type ImportHeader struct {
	Header string
	Field  string
	Alias  bool // Accepted on import, left out of the template
}

// TemplateHeaders returns the headers written to a blank import template.
func (s *RegistrationSpec) TemplateHeaders() []string {
	var out []string
	for _, h := range s.ImportHeaders {
		if !h.Alias {
			out = append(out, h.Header)
		}
	}
	return out
}

// TableDefinition contains everything needed to serve a table.
type TableDefinition struct {
	Info          TableInfo
	FieldSpecs    []FieldSpec
	UniqueField   string // Field that must be unique across rows ("" for none)
	OwnerField    string // Field resolved against the employee directory by name
	DefaultStatus string // Status loaded when the client names none
	ReadOnlyView  string // Status value whose view disables every mode

	// ApplyOwner copies directory data onto a row whose owner changed.
	ApplyOwner func(row Row, e Employee)

	Load           LoadFunc
	LoadReferences LoadReferencesFunc
	BuildUpdate    BuildUpdateFunc
	MergeDraft     MergeDraftFunc
	SubmitUpdate   SubmitFunc

	UpdateFailureMessage string
	SaveConfirmMessage   string // fmt verb %d receives the edited count

	Retire       *RetireSpec
	Registration *RegistrationSpec
}

// Field returns the FieldSpec named name.
func (t TableDefinition) Field(name string) (FieldSpec, bool) {
	for _, spec := range t.FieldSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// Label returns the display label of a field, falling back to its name.
func (t TableDefinition) Label(name string) string {
	if spec, ok := t.Field(name); ok && spec.Label != "" {
		return spec.Label
	}
	return name
}

// SearchFields returns the fields that feed the search corpus.
func (t TableDefinition) SearchFields() []string {
	return t.fieldsWhere(func(s FieldSpec) bool { return s.Searchable })
}

// FilterFields returns the fields that accept a column filter.
func (t TableDefinition) FilterFields() []string {
	return t.fieldsWhere(func(s FieldSpec) bool { return s.Filterable })
}

// TrackedFields returns the fields compared by the edit tracker.
func (t TableDefinition) TrackedFields() []string {
	return t.fieldsWhere(func(s FieldSpec) bool { return s.Editable })
}

// CellEditable reports whether a client may edit the field directly.
func (t TableDefinition) CellEditable(name string) bool {
	spec, ok := t.Field(name)
	return ok && spec.Editable && !spec.ReadOnly
}

func (t TableDefinition) fieldsWhere(keep func(FieldSpec) bool) []string {
	var out []string
	for _, spec := range t.FieldSpecs {
		if keep(spec) {
			out = append(out, spec.Name)
		}
	}
	return out
}

// Backend is the subset of the asset REST backend the engine calls.
// Implemented by internal/backend.Client.
type Backend interface {
	ListAssets(ctx context.Context, status string) ([]Row, error)
	ListEmployees(ctx context.Context) ([]Row, error)
	AssetSerials(ctx context.Context) ([]string, error)
	EmployeeIDs(ctx context.Context) ([]string, error)
	Teams(ctx context.Context) ([]string, error)
	Positions(ctx context.Context) ([]string, error)
	AssetHistory(ctx context.Context, assetID string) ([]Row, error)

	NextAssetID(ctx context.Context, assetType string) (string, error)
	NextEmployeeID(ctx context.Context) (string, error)

	UpdateAssets(ctx context.Context, payload []Row) error
	UpdateEmployees(ctx context.Context, payload []Row) error
	DisposeAssets(ctx context.Context, payload []Row) error
	ResignEmployees(ctx context.Context, payload []Row) error
	CreateAssets(ctx context.Context, payload []Row) error
	CreateEmployees(ctx context.Context, payload []Row) error
}

// Confirmation describes a pending mutating action awaiting the user's OK.
type Confirmation struct {
	Action  string `json:"action"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}
