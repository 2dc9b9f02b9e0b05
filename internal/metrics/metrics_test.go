package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Counters(t *testing.T) {
	r := New(false)
	r.Submit("assets", "dispose", "success")
	r.Submit("assets", "dispose", "success")
	r.Submit("assets", "bulk_update", "failure")
	r.ValidationFailed("employees", "register")
	r.Allocation("모니터", "success")
	r.WorkspacesActive(3)
	r.Import("assets", "success")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"dispose successes", testutil.ToFloat64(r.submits.WithLabelValues("assets", "dispose", "success")), 2},
		{"update failures", testutil.ToFloat64(r.submits.WithLabelValues("assets", "bulk_update", "failure")), 1},
		{"validation", testutil.ToFloat64(r.validations.WithLabelValues("employees", "register")), 1},
		{"allocation", testutil.ToFloat64(r.allocations.WithLabelValues("모니터", "success")), 1},
		{"workspaces", testutil.ToFloat64(r.workspaces), 3},
		{"imports", testutil.ToFloat64(r.imports.WithLabelValues("assets", "success")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := New(false)
	r.Submit("employees", "resign", "success")
	r.ObserveRequest("/api/tables/{table}/rows", "GET", 200, 0.01)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`assetconsole_submits_total{action="resign",outcome="success",table="employees"} 1`,
		`assetconsole_http_request_duration_seconds_count{method="GET",route="/api/tables/{table}/rows",status="2xx"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 302: "3xx", 401: "4xx", 503: "5xx"}
	for in, want := range tests {
		if got := statusClass(in); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", in, got, want)
		}
	}
}
