package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/importer"
	"github.com/JonMunkholm/assetconsole/internal/logging"
)

// registration resolves the {id} registration form of the caller.
func (s *Server) registration(r *http.Request) (*core.RegistrationSession, error) {
	return s.workspace(r).Registration(chi.URLParam(r, "id"))
}

// handleOpenRegistration opens a registration form for the {id} table.
func (s *Server) handleOpenRegistration(w http.ResponseWriter, r *http.Request) {
	def, err := core.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if def.Registration == nil {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrNoRegistration, def.Info.Key))
		return
	}
	if err := requirePermission(r, def); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.workspace(r).OpenRegistration(r.Context(), def.Info.Key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sess.State())
}

// handleGetRegistration returns the rows and errors of a form.
func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registration(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

// handleCloseRegistration discards a form.
func (s *Server) handleCloseRegistration(w http.ResponseWriter, r *http.Request) {
	if !s.workspace(r).CloseRegistration(chi.URLParam(r, "id")) {
		s.respondError(w, r, core.ErrSessionClosed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddRow appends a blank row.
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registration(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if _, err := sess.AddRow(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

// handleRemoveRows removes the given rows, releasing their identifiers.
func (s *Server) handleRemoveRows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.registration(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	n, err := sess.RemoveSelected(req.IDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"removed": n,
		"state":   sess.State(),
	})
}

// handleSetField edits one cell of a form row.
func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value any    `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.registration(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := sess.SetField(r.Context(), chi.URLParam(r, "rowId"), req.Field, req.Value); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, sess.State())
}

// handleImport seeds a form from an xlsx or CSV spreadsheet, sent either as
// the request body or as the "file" part of a multipart form.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registration(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	def, err := core.Lookup(sess.Table())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	body, closeBody, err := uploadBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeBody()

	res, err := s.importer.Import(r.Context(), sess, def, body)
	s.recordImport(def.Info.Key, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(),
		"registration", sess.ID(),
		"table", def.Info.Key,
	).Info("spreadsheet imported", "rows", len(res.Rows), "row_errors", res.ErrorCount())

	writeJSON(w, map[string]any{
		"rows":      len(res.Rows),
		"rowErrors": res.ErrorCount(),
		"state":     sess.State(),
	})
}

func (s *Server) recordImport(table string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := core.OutcomeSuccess
	switch {
	case errors.Is(err, importer.ErrTooManyImports):
		outcome = "throttled"
	case err != nil:
		outcome = core.OutcomeFailure
	}
	s.metrics.Import(table, outcome)
}

// uploadBody returns the spreadsheet stream of an import request.
func uploadBody(r *http.Request) (io.Reader, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, noop, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, noop, fmt.Errorf("invalid multipart body: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, noop, errors.New(`multipart body has no "file" part`)
		}
		if err != nil {
			return nil, noop, fmt.Errorf("invalid multipart body: %w", err)
		}
		if part.FormName() == "file" {
			return part, func() { part.Close() }, nil
		}
		part.Close()
	}
}

// handleSubmitRegistration sends every row of a form in one create request
// and closes the form on success.
func (s *Server) handleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registration(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	def, err := core.Lookup(sess.Table())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := requirePermission(r, def); err != nil {
		s.respondError(w, r, err)
		return
	}

	n, err := sess.Submit(r.Context())
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) || errors.Is(err, core.ErrNoRows) {
			// The form carries the field errors; send it back with them.
			writeJSONStatus(w, http.StatusUnprocessableEntity, map[string]any{
				"error": core.MapError(err),
				"state": sess.State(),
			})
			return
		}
		s.respondError(w, r, err)
		return
	}
	s.workspace(r).CloseRegistration(sess.ID())
	writeJSON(w, map[string]any{
		"created": n,
		"table":   def.Info.Key,
	})
}

// handleTemplate downloads the blank import spreadsheet of a table.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	def, err := core.Lookup(chi.URLParam(r, "table"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if def.Registration == nil {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrNoRegistration, def.Info.Key))
		return
	}

	w.Header().Set("Content-Type", importer.TemplateContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": importer.TemplateFileName(def),
	}))
	if err := importer.WriteTemplate(w, def); err != nil {
		logging.FromContext(r.Context()).Error("template write failed", "table", def.Info.Key, "error", err)
	}
}
