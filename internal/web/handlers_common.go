package web

// handlers_common.go holds the request parsing and workspace helpers shared
// by the handlers.

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetconsole/internal/backend"
	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/web/middleware"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseFilters extracts filter[field]=value pairs. Fields a table does not
// filter on are dropped later by ColumnFilters.Active.
func parseFilters(r *http.Request) core.ColumnFilters {
	filters := make(core.ColumnFilters)
	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		field := key[len("filter[") : len(key)-1]
		if field == "" || len(values) == 0 {
			continue
		}
		filters[field] = values[len(values)-1]
	}
	return filters
}

// parseQuery reads the search, filters and paging of a row listing.
func parseQuery(r *http.Request) core.QueryParams {
	return core.QueryParams{
		Search:  r.URL.Query().Get("q"),
		Filters: parseFilters(r),
		Page:    parseIntParam(r, "page", 1),
		Size:    parseIntParam(r, "size", 0),
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// conn returns a backend connection carrying the request's session token.
func (s *Server) conn(r *http.Request) *backend.Conn {
	return s.backend.Bind(middleware.SessionFromContext(r.Context()))
}

// workspace returns the caller's workspace, bound to a fresh connection so
// a re-login carries its new token into existing views.
func (s *Server) workspace(r *http.Request) *core.Workspace {
	sess := middleware.SessionFromContext(r.Context())
	return s.service.Workspace(sess.Token, sess.User, s.backend.Bind(sess))
}

// table resolves the {table} view of the caller's workspace. The optional
// status query parameter selects the partition ("N" for disposed assets).
func (s *Server) table(r *http.Request) (*core.TableView, error) {
	return s.workspace(r).Table(r.Context(), chi.URLParam(r, "table"), r.URL.Query().Get("status"))
}

// requirePermission fails with core.ErrForbidden unless the caller may
// mutate rows of def.
func requirePermission(r *http.Request, def core.TableDefinition) error {
	perm := def.Info.Permission
	if !core.UserFromContext(r.Context()).Has(perm) {
		return fmt.Errorf("%w: %s requires %s", core.ErrForbidden, def.Info.Key, perm)
	}
	return nil
}
