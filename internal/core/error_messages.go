package core

// error_messages.go maps engine and transport errors to coded user messages.
//
// # Error Codes Reference
//
// Codes are grouped by category so users can quote them to support staff.
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Rejected by the validation gate; the message names the row and field
//	VAL002 - No edited rows to save
//	VAL003 - Reference data still loading
//	VAL004 - Nothing selected
//	VAL005 - Registration form has no rows
//
// # Allocation (ALLOC001-ALLOC099)
//
//	ALLOC001 - No identifier could be allocated for a category
//
// # Backend requests (REQ001-REQ099)
//
//	REQ001 - The backend rejected or failed a request
//	REQ002 - Backend unreachable (patterns: "connection refused", "no such host")
//	REQ003 - Backend timed out (patterns: "timeout", "context deadline exceeded")
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - Session expired or credentials rejected; log in again
//	AUTH002 - Missing permission for the action
//	AUTH003 - Login rejected by the backend
//
// # Modes (MODE001-MODE099)
//
//	MODE001 - The mode the action needs is not active
//	MODE002 - Read-only view
//	MODE003 - Action was not confirmed first
//	MODE004 - Row is not selected
//	MODE005 - Field cannot be edited
//
// # Sessions and tables (SESS001-SESS099, TBL001-TBL099)
//
//	SESS001 - Registration form closed or unknown
//	SESS002 - Import already applied to this form
//	TBL001  - Table not found
//	TBL002  - Row not found
//	TBL003  - Table has no registration form
//
// # Import (IMP001-IMP099)
//
//	IMP001 - Spreadsheet could not be read (patterns: "invalid csv", "invalid xlsx", "parse error")
//	IMP002 - Spreadsheet has no data rows (pattern: "no data rows")
//	IMP003 - Spreadsheet exceeds the upload limit (pattern: "too large")
//
// # Rate limiting (RATE001) and default (ERR000)
//
//	RATE001 - Too many requests (pattern: "rate limit")
//	ERR000  - Unexpected error; check the application log
//
// Typed and sentinel errors are resolved with errors.As/errors.Is first.
// Anything else falls back to case-insensitive substring patterns where the
// first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened (user-friendly)
	Action  string `json:"action,omitempty"` // What to do about it
	Code    string `json:"code"`             // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked with errors.Is in order.
var sentinelMessages = []sentinelMessage{
	{ErrNoChanges, UserMessage{Message: ErrNoChanges.Error(), Code: "VAL002"}},
	{ErrReferenceLoading, UserMessage{Message: ErrReferenceLoading.Error(), Action: "참조 데이터를 불러오는 중입니다.", Code: "VAL003"}},
	{ErrNothingSelected, UserMessage{Message: ErrNothingSelected.Error(), Code: "VAL004"}},
	{ErrNoRows, UserMessage{Message: ErrNoRows.Error(), Code: "VAL005"}},
	{ErrUnauthorized, UserMessage{Message: "로그인이 만료되었습니다.", Action: "다시 로그인하세요.", Code: "AUTH001"}},
	{ErrForbidden, UserMessage{Message: "권한이 없습니다.", Action: "관리자에게 권한을 요청하세요.", Code: "AUTH002"}},
	{ErrModeInactive, UserMessage{Message: "해당 모드가 활성화되어 있지 않습니다.", Action: "모드를 먼저 켜세요.", Code: "MODE001"}},
	{ErrModeDisabled, UserMessage{Message: "읽기 전용 목록입니다.", Code: "MODE002"}},
	{ErrNotConfirmed, UserMessage{Message: "확인 절차 없이 요청할 수 없습니다.", Action: "확인 창에서 다시 시도하세요.", Code: "MODE003"}},
	{ErrRowNotSelected, UserMessage{Message: "선택된 행만 수정할 수 있습니다.", Code: "MODE004"}},
	{ErrFieldNotEditable, UserMessage{Message: "수정할 수 없는 항목입니다.", Code: "MODE005"}},
	{ErrSessionClosed, UserMessage{Message: "등록 창이 닫혔습니다.", Action: "등록 창을 다시 여세요.", Code: "SESS001"}},
	{ErrAlreadySeeded, UserMessage{Message: "이미 엑셀 데이터를 불러왔습니다.", Action: "새 등록 창을 여세요.", Code: "SESS002"}},
	{ErrTableNotFound, UserMessage{Message: "목록을 찾을 수 없습니다.", Code: "TBL001"}},
	{ErrRowNotFound, UserMessage{Message: "행을 찾을 수 없습니다.", Action: "목록을 새로고침하세요.", Code: "TBL002"}},
	{ErrNoRegistration, UserMessage{Message: "등록을 지원하지 않는 목록입니다.", Code: "TBL003"}},
}

// ErrForbidden is returned when the user lacks a permission.
var ErrForbidden = errors.New("forbidden")

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{Message: "서버에 연결할 수 없습니다.", Action: "잠시 후 다시 시도하세요.", Code: "REQ002"}},
	{"no such host", UserMessage{Message: "서버에 연결할 수 없습니다.", Action: "잠시 후 다시 시도하세요.", Code: "REQ002"}},
	{"context deadline exceeded", UserMessage{Message: "요청 시간이 초과되었습니다.", Action: "잠시 후 다시 시도하세요.", Code: "REQ003"}},
	{"timeout", UserMessage{Message: "요청 시간이 초과되었습니다.", Action: "잠시 후 다시 시도하세요.", Code: "REQ003"}},
	{"no data rows", UserMessage{Message: "엑셀에 데이터 행이 없습니다.", Code: "IMP002"}},
	{"invalid csv", UserMessage{Message: "엑셀 파일을 읽는 중 오류가 발생했습니다.", Action: "양식을 내려받아 다시 작성하세요.", Code: "IMP001"}},
	{"invalid xlsx", UserMessage{Message: "엑셀 파일을 읽는 중 오류가 발생했습니다.", Action: "양식을 내려받아 다시 작성하세요.", Code: "IMP001"}},
	{"parse error", UserMessage{Message: "엑셀 파일을 읽는 중 오류가 발생했습니다.", Action: "양식을 내려받아 다시 작성하세요.", Code: "IMP001"}},
	{"too large", UserMessage{Message: "엑셀 파일이 너무 큽니다.", Action: "행을 나누어 여러 번 불러오세요.", Code: "IMP003"}},
	{"rate limit", UserMessage{Message: "요청이 너무 많습니다.", Action: "잠시 후 다시 시도하세요.", Code: "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "예상하지 못한 오류가 발생했습니다.",
	Action:  "다시 시도하거나 관리자에게 문의하세요.",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message.
//
// Example:
//
//	err := &ValidationError{Message: "자산(A001) 제조사를 입력하세요."}
//	msg := MapError(err)
//	// msg.Code == "VAL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return UserMessage{Message: ve.Message, Code: "VAL001"}
	}
	var ae *AllocationError
	if errors.As(err, &ae) {
		return UserMessage{Message: "품번 생성에 실패했습니다.", Action: "종류를 다시 선택하세요.", Code: "ALLOC001"}
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	// Transport failures keep their specific code; other backend
	// failures show the operation's own message.
	errStr := strings.ToLower(err.Error())
	var re *RequestError
	if errors.As(err, &re) && re.Err != nil {
		errStr = strings.ToLower(re.Err.Error())
	}
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if re != nil {
		return UserMessage{Message: re.Message, Action: "잠시 후 다시 시도하세요.", Code: "REQ001"}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if msg.Action == "" {
		return fmt.Sprintf("%s (Code: %s)", msg.Message, msg.Code)
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps it for logging. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
