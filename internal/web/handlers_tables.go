package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetconsole/internal/backend"
	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/logging"
)

// tableSummary describes a table to the client.
type tableSummary struct {
	Key           string         `json:"key"`
	Label         string         `json:"label"`
	IDField       string         `json:"idField"`
	DefaultStatus string         `json:"defaultStatus,omitempty"`
	ReadOnlyView  string         `json:"readOnlyView,omitempty"`
	Writable      bool           `json:"writable"`
	RetireAction  string         `json:"retireAction,omitempty"`
	Registration  bool           `json:"registration"`
	Fields        []fieldSummary `json:"fields"`
}

type fieldSummary struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Searchable bool   `json:"searchable,omitempty"`
	Filterable bool   `json:"filterable,omitempty"`
	Editable   bool   `json:"editable,omitempty"`
}

// handleListTables returns the registered tables with what the caller may
// do on each.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	user := core.UserFromContext(r.Context())
	defs := core.All()
	out := make([]tableSummary, 0, len(defs))
	for _, def := range defs {
		ts := tableSummary{
			Key:           def.Info.Key,
			Label:         def.Info.Label,
			IDField:       def.Info.IDField,
			DefaultStatus: def.DefaultStatus,
			ReadOnlyView:  def.ReadOnlyView,
			Writable:      user.Has(def.Info.Permission),
			Registration:  def.Registration != nil,
		}
		if def.Retire != nil {
			ts.RetireAction = string(def.Retire.Action)
		}
		for _, f := range def.FieldSpecs {
			ts.Fields = append(ts.Fields, fieldSummary{
				Name:       f.Name,
				Label:      def.Label(f.Name),
				Searchable: f.Searchable,
				Filterable: f.Filterable,
				Editable:   def.CellEditable(f.Name),
			})
		}
		out = append(out, ts)
	}
	writeJSON(w, out)
}

// handleRows returns one page of the searched and filtered rows.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, v.Query(parseQuery(r)))
}

// handleReload fetches the rows from the backend again.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := v.Load(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, v.Query(parseQuery(r)))
}

// handleMode toggles bulk update or dispose/resign mode.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := core.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if mode != core.ModeViewing {
		if err := requirePermission(r, v.Definition()); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	if _, err := v.Toggle(r.Context(), mode); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, v.State())
}

// handleEdit records a bulk-update edit. The body carries either a whole
// edited row or a single field and value.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RowID string   `json:"rowId"`
		Row   core.Row `json:"row"`
		Field string   `json:"field"`
		Value any      `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RowID == "" || (req.Row == nil && req.Field == "") {
		writeError(w, http.StatusBadRequest, "rowId and row or field are required")
		return
	}

	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := requirePermission(r, v.Definition()); err != nil {
		s.respondError(w, r, err)
		return
	}

	var fields []string
	if req.Row != nil {
		fields, err = v.RecordChange(req.RowID, req.Row)
	} else {
		fields, err = v.EditCell(req.RowID, req.Field, req.Value)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"rowId":        req.RowID,
		"editedFields": fields,
		"state":        v.State(),
	})
}

// handleSelection replaces the dispose/resign selection.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	focus, applied := v.Select(req.IDs)
	writeJSON(w, map[string]any{
		"applied": applied,
		"focus":   focus,
		"state":   v.State(),
	})
}

// handleRemark edits the disposal remark of a selected row.
func (s *Server) handleRemark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RowID  string `json:"rowId"`
		Remark string `json:"remark"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := v.SetRemark(req.RowID, req.Remark); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, v.State())
}

// handlePrepareSave validates the drafts and returns the confirmation text.
func (s *Server) handlePrepareSave(w http.ResponseWriter, r *http.Request) {
	s.prepare(w, r, (*core.TableView).PrepareSave)
}

// handleSubmitSave sends the confirmed bulk update.
func (s *Server) handleSubmitSave(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, (*core.TableView).SubmitSave)
}

// handlePrepareRetire validates the selection and returns the
// confirmation text.
func (s *Server) handlePrepareRetire(w http.ResponseWriter, r *http.Request) {
	s.prepare(w, r, (*core.TableView).PrepareRetire)
}

// handleSubmitRetire sends the confirmed dispose or resign request.
func (s *Server) handleSubmitRetire(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, (*core.TableView).SubmitRetire)
}

// handleCancel dismisses a pending confirmation.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	v.Cancel()
	writeJSON(w, v.State())
}

func (s *Server) prepare(w http.ResponseWriter, r *http.Request, fn func(*core.TableView) (core.Confirmation, error)) {
	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := requirePermission(r, v.Definition()); err != nil {
		s.respondError(w, r, err)
		return
	}
	c, err := fn(v)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, fn func(*core.TableView, context.Context) (int, error)) {
	v, err := s.table(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := requirePermission(r, v.Definition()); err != nil {
		s.respondError(w, r, err)
		return
	}
	n, err := fn(v, r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"affected": n,
		"state":    v.State(),
	})
}

// handleExport streams the backend's spreadsheet of a table with the
// caller's search and filters.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	conn := s.conn(r)
	var export func(context.Context, url.Values) (*backend.Export, error)
	switch key := chi.URLParam(r, "table"); key {
	case "assets":
		export = conn.ExportAssets
	case "employees":
		export = conn.ExportEmployees
	default:
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrTableNotFound, key))
		return
	}
	s.streamExport(w, r, func(ctx context.Context) (*backend.Export, error) {
		return export(ctx, r.URL.Query())
	})
}

// streamExport copies a backend export to the client.
func (s *Server) streamExport(w http.ResponseWriter, r *http.Request, open func(context.Context) (*backend.Export, error)) {
	exp, err := open(r.Context())
	if err != nil {
		s.respondError(w, r, &core.RequestError{Op: "export", Message: "엑셀 다운로드에 실패했습니다.", Err: err})
		return
	}
	defer exp.Close()

	h := w.Header()
	h.Set("Content-Type", exp.ContentType)
	if exp.Disposition != "" {
		h.Set("Content-Disposition", exp.Disposition)
	}
	if exp.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(exp.ContentLength, 10))
	}
	if _, err := io.Copy(w, exp.Body); err != nil {
		logging.FromContext(r.Context()).Warn("export copy interrupted", "error", err)
	}
}
