package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoChanges        = errors.New("수정된 항목이 없습니다.")
	ErrReferenceLoading = errors.New("잠시 후 다시 시도하세요.")
	ErrModeInactive     = errors.New("mode inactive")
	ErrModeDisabled     = errors.New("mode disabled for read-only view")
	ErrNothingSelected  = errors.New("제거할 행을 선택하세요.")
	ErrNotConfirmed     = errors.New("action not confirmed")
	ErrAlreadySeeded    = errors.New("registration already seeded")
	ErrSessionClosed    = errors.New("registration session closed")
	ErrNoRows           = errors.New("등록할 행이 없습니다.")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTableNotFound    = errors.New("table not found")
	ErrRowNotFound      = errors.New("row not found")
	ErrFieldNotEditable = errors.New("field not editable")
	ErrWorkspaceGone    = errors.New("workspace not found")
)

// ValidationError is a user-facing rejection raised before any network call.
// Message is shown verbatim; RowID and Field locate the offending cell.
type ValidationError struct {
	RowID   string
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(rowID, field, format string, args ...any) *ValidationError {
	return &ValidationError{RowID: rowID, Field: field, Message: fmt.Sprintf(format, args...)}
}

// AllocationError reports that no identifier could be produced for a category.
type AllocationError struct {
	Category string
	Err      error
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("allocate id for %q: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("allocate id for %q: no usable id", e.Category)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// RequestError wraps a failed backend call with the message shown to the user.
type RequestError struct {
	Op      string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

// AuthError is returned by the backend client on 401/403. The console
// session must be torn down when it surfaces.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backend rejected credentials (status %d)", e.Status)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}
