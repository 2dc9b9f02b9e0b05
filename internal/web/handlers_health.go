package web

import "net/http"

// handleHealth reports liveness with the workspace count and import slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"workspaces": s.service.Len(),
	}
	if s.importer != nil {
		resp["imports"] = s.importer.Limiter().Status()
	}
	writeJSON(w, resp)
}
