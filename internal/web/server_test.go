package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assetconsole/internal/backend"
	"github.com/JonMunkholm/assetconsole/internal/config"
	"github.com/JonMunkholm/assetconsole/internal/core"
	_ "github.com/JonMunkholm/assetconsole/internal/core/tables"
	"github.com/JonMunkholm/assetconsole/internal/importer"
	"github.com/JonMunkholm/assetconsole/internal/metrics"
	"github.com/JonMunkholm/assetconsole/internal/session"
)

// memStore is an in-memory session.Store.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	audit    []core.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]session.Session)}
}

func (m *memStore) Create(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = *s
	return nil
}

func (m *memStore) Get(_ context.Context, token string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return session.ErrNotFound
	}
	delete(m.sessions, token)
	return nil
}

func (m *memStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

func (m *memStore) AppendAudit(_ context.Context, e core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, f core.AuditLogFilter) ([]core.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.TableKey != "" && e.TableKey != f.TableKey {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// fakeAPI is the asset REST backend.
type fakeAPI struct {
	mu       sync.Mutex
	assets   []core.Row
	reject   bool // answer 401 to every authenticated request
	writes   map[string][]core.Row
	requests []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		assets: []core.Row{
			{
				"assetId": "A001", "assetType": "노트북", "assetManufacturer": "LG",
				"assetManufacturedAt": "2024-01-30", "assetModelName": "그램", "assetSn": "SN1",
				"empId": "E001", "empName": "김철수", "empPos": "대리", "teamName": "개발팀",
				"assetLoc": "본사_3F", "assetIssuanceDate": "2024-02-01", "assetDesc": "업무용", "assetStatus": "Y",
			},
			{
				"assetId": "A002", "assetType": "모니터", "assetManufacturer": "Dell",
				"assetManufacturedAt": "2023-05-10", "assetModelName": "U2720", "assetSn": "SN2",
				"empId": "E002", "empName": "이영희", "empPos": "과장", "teamName": "영업팀",
				"assetLoc": "본사_2F", "assetIssuanceDate": "2023-06-01", "assetDesc": "예비", "assetStatus": "Y",
			},
		},
		writes: make(map[string][]core.Row),
	}
}

var fakeEmployees = []core.Row{
	{"empId": "E001", "empName": "김철수", "empPos": "대리", "teamName": "개발팀", "empStatus": "재직"},
	{"empId": "E002", "empName": "이영희", "empPos": "과장", "teamName": "영업팀", "empStatus": "재직"},
}

var fakeUsers = map[string]core.User{
	"admin":  {UserID: "admin", Name: "관리자", Auth: []string{"PERM_ASSET_WRITE", "PERM_HR_WRITE"}},
	"viewer": {UserID: "viewer", Name: "열람자"},
}

func (f *fakeAPI) setReject(v bool) {
	f.mu.Lock()
	f.reject = v
	f.mu.Unlock()
}

func (f *fakeAPI) written(key string) []core.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[key]
}

func envelopeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": status < 300, "data": data})
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, key)
	reject := f.reject
	f.mu.Unlock()

	if key == "POST /auth/login" {
		var req backend.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		user, ok := fakeUsers[req.UserID]
		if !ok || req.UserPw != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		envelopeJSON(w, http.StatusOK, map[string]any{"accessToken": "tok-" + req.UserID, "user": user})
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") || reject {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case key == "GET /assets":
		f.mu.Lock()
		rows := make([]core.Row, 0, len(f.assets))
		for _, a := range f.assets {
			if status := r.URL.Query().Get("assetStatus"); status == "" || a["assetStatus"] == status {
				rows = append(rows, a.Clone())
			}
		}
		f.mu.Unlock()
		envelopeJSON(w, http.StatusOK, map[string]any{"content": rows})
	case key == "GET /emp":
		envelopeJSON(w, http.StatusOK, map[string]any{"content": fakeEmployees})
	case key == "GET /assets/sn":
		envelopeJSON(w, http.StatusOK, []string{"SN1", "SN2"})
	case key == "GET /assets/nextId":
		envelopeJSON(w, http.StatusOK, "NB001")
	case key == "GET /user/my":
		envelopeJSON(w, http.StatusOK, map[string]any{"userId": "admin", "username": "관리자"})
	case key == "GET /assets/export":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="assets.xlsx"`)
		io.WriteString(w, "xlsx-bytes:"+r.URL.Query().Get("q"))
	case strings.HasPrefix(key, "GET /assets/history/"):
		envelopeJSON(w, http.StatusOK, []core.Row{
			{
				"assetHistoryId": 1, "assetId": "A001", "displayId": "A001", "assetHoldEmp": "김철수",
				"assetHistoryDesc": "최초 지급", "assetHistoryDate": "2024-02-01T09:00:00", "isFirst": true,
			},
		})
	case key == "POST /auth/logout", key == "POST /user/auth", key == "DELETE /user/auth":
		envelopeJSON(w, http.StatusOK, nil)
	case key == "PATCH /assets/bulkUpdate", key == "PATCH /assets/dispose", key == "POST /assets",
		key == "PATCH /emp/resign", key == "PATCH /emp/bulkUpdate", key == "POST /emp":
		var payload []core.Row
		json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.writes[key] = payload
		f.mu.Unlock()
		envelopeJSON(w, http.StatusOK, nil)
	default:
		http.NotFound(w, r)
	}
}

// harness is a console server wired to a fake backend.
type harness struct {
	t       *testing.T
	api     *fakeAPI
	store   *memStore
	service *core.Service
	server  *Server
	metrics *metrics.Recorder
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 10 * time.Second},
		Session: config.SessionConfig{TTL: time.Hour, CookieName: "console_session"},
		Rate:    config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := newFakeAPI()
	backendSrv := httptest.NewServer(api)
	t.Cleanup(backendSrv.Close)

	store := newMemStore()
	sessions := session.NewManager(store, time.Hour)
	rec := metrics.New(false)
	service := core.NewService(core.ServiceConfig{
		Auditor:  core.NewAuditor(store),
		Recorder: rec,
	})
	client := backend.New(backendSrv.URL, backend.WithUnauthorizedHook(TeardownHook(sessions)))

	srv := NewServer(Deps{
		Config:   testConfig(),
		Service:  service,
		Sessions: sessions,
		Backend:  client,
		Importer: importer.New(2, time.Second, 1<<20),
		Metrics:  rec,
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &harness{t: t, api: api, store: store, service: service, server: srv, metrics: rec}
}

// do sends a request with the given session token (may be empty) and
// returns the recorded response.
func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = strings.NewReader(string(buf))
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "console_session", Value: token})
	}
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

// login logs a user in and returns the console token.
func (h *harness) login(userID string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"userId": userID, "userPw": "secret"})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(h.t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func rowIDs(rows []core.Row, field string) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Text(field))
	}
	sort.Strings(ids)
	return ids
}
