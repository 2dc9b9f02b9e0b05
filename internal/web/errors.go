package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to a coded user message
//  4. statusFor picks the HTTP status from the error's type
//  5. Technical error and request id are logged, the user message is sent
//
// Authentication failures also clear the session cookie and tell the
// client to go back to the login page. The backend client's unauthorized
// hook has already torn the console session down by then.

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/importer"
)

// loginPath is where clients are sent when their session ends.
const loginPath = "/login"

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Action   string `json:"action,omitempty"`
	Code     string `json:"code"`
	Redirect string `json:"redirect,omitempty"`
}

// respondError logs err with request context and writes its user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if status == http.StatusUnauthorized {
		s.clearCookie(w)
	}
	respondUser(w, r, msg, status)
}

// respondUser writes a user message as a JSON error.
func respondUser(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	if status == http.StatusUnauthorized {
		resp.Redirect = loginPath
	}
	writeJSONStatus(w, status, resp)
}

// statusFor maps engine, transport and import errors to HTTP statuses.
func statusFor(err error) int {
	var (
		ve *core.ValidationError
		ae *core.AllocationError
		re *core.RequestError
		pe *csv.ParseError
	)
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTableNotFound),
		errors.Is(err, core.ErrRowNotFound),
		errors.Is(err, core.ErrSessionClosed),
		errors.Is(err, core.ErrNoRegistration):
		return http.StatusNotFound
	case errors.Is(err, core.ErrModeInactive),
		errors.Is(err, core.ErrModeDisabled),
		errors.Is(err, core.ErrNotConfirmed),
		errors.Is(err, core.ErrAlreadySeeded),
		errors.Is(err, core.ErrReferenceLoading):
		return http.StatusConflict
	case errors.As(err, &ve), errors.As(err, &ae),
		errors.Is(err, core.ErrNoChanges),
		errors.Is(err, core.ErrNothingSelected),
		errors.Is(err, core.ErrNoRows),
		errors.Is(err, core.ErrRowNotSelected),
		errors.Is(err, core.ErrFieldNotEditable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, importer.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrNoDataRows),
		errors.Is(err, importer.ErrNoHeader),
		errors.Is(err, importer.ErrInvalidWorkbook),
		errors.As(err, &pe):
		return http.StatusBadRequest
	case errors.As(err, &re):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// clearCookie expires the session cookie.
func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
