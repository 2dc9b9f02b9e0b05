package web

import (
	"net/http"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// handleAuditLog lists audit entries, newest first.
// Query: table, action, limit (default 100), offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.AuditLogFilter{
		TableKey: q.Get("table"),
		Action:   core.AuditAction(q.Get("action")),
		Limit:    parseIntParam(r, "limit", core.DefaultAuditLimit),
		Offset:   parseIntParam(r, "offset", 0),
	}

	entries, err := s.service.Auditor().List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, map[string]any{
		"entries": entries,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}
