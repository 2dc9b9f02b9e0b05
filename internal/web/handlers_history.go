package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetconsole/internal/backend"
)

// handleHistory returns the history of one asset, or of every asset for
// TOTAL, searched and filtered like a table.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.workspace(r).History(r.Context(), chi.URLParam(r, "assetId"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, h.Query(parseQuery(r)))
}

// handleHistoryExport streams the backend's history spreadsheet.
func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	conn := s.conn(r)
	assetID := chi.URLParam(r, "assetId")
	s.streamExport(w, r, func(ctx context.Context) (*backend.Export, error) {
		return conn.ExportHistory(ctx, assetID, r.URL.Query())
	})
}
