package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/waterline-io/waterline/internal/baseline"
	"github.com/waterline-io/waterline/internal/dashboard"
	"github.com/waterline-io/waterline/internal/hydraulic"
	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/monitor"
	"github.com/waterline-io/waterline/internal/service"
	"github.com/waterline-io/waterline/internal/simclock"
	"github.com/waterline-io/waterline/internal/simulator"
	"github.com/waterline-io/waterline/internal/store"
)

const testToken = "test-admin-token"

const testDef = `
name: api-test
junctions:
  - id: J1
    pressure: 50
pipes:
  - id: P1
    from: J1
    to: ""
    flow: 12
tanks:
  - id: T1
    initial_level: 5
    pressure: 30
    min_level: 1
    max_level: 10
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "waterline.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := &simclock.Frozen{T: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	reg := baseline.NewRegistry(s, hydraulic.Load, func() int64 { return clock.T.UnixNano() })
	sim := simulator.New(s, reg, clock)
	mon := monitor.New(s, reg, hydraulic.Load, clock)
	agg, err := dashboard.NewAggregator(s, clock, time.Second, 16)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(agg.Close)

	cp := service.New(s, reg, sim, mon, agg, hydraulic.Load, clock)
	return NewServer("127.0.0.1", 0, testToken, cp, 1<<20)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	decodeInto(t, rec, &body)
	return body.Error.Code
}

func createNetwork(t *testing.T, srv *Server) string {
	t.Helper()
	req, _ := json.Marshal(CreateNetworkRequest{DisplayName: "Plant North", Definition: testDef})
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/networks", string(req))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create network: status %d body %s", rec.Code, rec.Body.String())
	}
	var n model.Network
	decodeInto(t, rec, &n)
	if n.ID == "" {
		t.Fatal("created network has no id")
	}
	return n.ID
}

func computeBaseline(t *testing.T, srv *Server, id string) {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/networks/"+id+"/actions/compute-baseline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("compute baseline: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestHealthzNoAuth(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", rec.Code)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := errCode(t, rec); code != "UNAUTHORIZED" {
		t.Fatalf("code = %q", code)
	}
}

func TestNetworkLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createNetwork(t, srv)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/networks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var page PageResponse[model.Network]
	decodeInto(t, rec, &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != id {
		t.Fatalf("list page = %+v", page)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/networks/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	var n model.Network
	decodeInto(t, rec, &n)
	if n.DisplayName != "Plant North" || n.DefinitionHash == "" {
		t.Fatalf("get network = %+v", n)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/networks/a4f9c7de-9f30-4b7a-9a40-94c1cbd6a001", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/networks/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
}

func TestCreateNetworkValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/networks",
		`{"display_name":"","definition":"name: x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty name: status %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/networks",
		`{"display_name":"x","definition":"junctions: ["}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad definition: status %d body %s", rec.Code, rec.Body.String())
	}
	if code := errCode(t, rec); code != "ENGINE_LOAD" {
		t.Fatalf("code = %q", code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/networks",
		`{"display_name":"x","definition":"name: x","bogus":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d", rec.Code)
	}
}

func TestBaselineActions(t *testing.T) {
	srv := newTestServer(t)
	id := createNetwork(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/networks/"+id+"/actions/compute-baseline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("compute: status %d body %s", rec.Code, rec.Body.String())
	}
	var summary service.BaselineSummary
	decodeInto(t, rec, &summary)
	if summary.Items != 3 || summary.Baselines != 4 {
		t.Fatalf("summary = %+v", summary)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/networks/"+id+"/actions/compute-baseline", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second compute: status %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost,
		"/api/v1/networks/"+id+"/actions/compute-baseline?recompute=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("recompute: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodPost,
		"/api/v1/networks/"+id+"/actions/compute-baseline?recompute=sideways", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad recompute flag: status %d", rec.Code)
	}
}

func TestSimulatorActions(t *testing.T) {
	srv := newTestServer(t)
	id := createNetwork(t, srv)

	start := `{"network_id":"` + id + `","config":{"generation_interval_minutes":1440,"delay_max_minutes":1}}`

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/simulator/actions/start", start)
	if rec.Code != http.StatusConflict {
		t.Fatalf("start before baseline: status %d body %s", rec.Code, rec.Body.String())
	}

	computeBaseline(t, srv, id)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/simulator/actions/start", start)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status %d body %s", rec.Code, rec.Body.String())
	}
	var status simulator.Status
	decodeInto(t, rec, &status)
	if status.NetworkID != id {
		t.Fatalf("start status = %+v", status)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/simulator/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/simulator/actions/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/simulator/actions/stop", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("double stop: status %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/simulator/actions/start",
		`{"network_id":"not-a-uuid"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad network id: status %d", rec.Code)
	}
}

func TestMonitorActions(t *testing.T) {
	srv := newTestServer(t)
	id := createNetwork(t, srv)
	computeBaseline(t, srv, id)

	start := `{"network_id":"` + id + `","config":{"monitoring_interval_minutes":1440,"time_window_minutes":5,"pressure_threshold_percent":10,"flow_threshold_percent":15,"level_threshold_percent":10}}`

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/monitor/actions/start", start)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status %d body %s", rec.Code, rec.Body.String())
	}
	var status monitor.Status
	decodeInto(t, rec, &status)
	if status.NetworkID != id {
		t.Fatalf("start status = %+v", status)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/monitor/actions/start", start)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double start: status %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/monitor/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/monitor/actions/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestListAnomalies(t *testing.T) {
	srv := newTestServer(t)
	id := createNetwork(t, srv)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/networks/"+id+"/anomalies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d body %s", rec.Code, rec.Body.String())
	}
	var page PageResponse[model.Anomaly]
	decodeInto(t, rec, &page)
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("page = %+v", page)
	}

	rec = doRequest(t, srv, http.MethodGet,
		"/api/v1/networks/"+id+"/anomalies?severity=catastrophic", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad severity: status %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet,
		"/api/v1/networks/"+id+"/anomalies?from_ns=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from_ns: status %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)
	id := createNetwork(t, srv)
	computeBaseline(t, srv, id)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/networks/"+id+"/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status %d body %s", rec.Code, rec.Body.String())
	}
	var m dashboard.Metrics
	decodeInto(t, rec, &m)
	if m.NetworkID != id || m.WindowMinutes != defaultDashboardWindowMinutes {
		t.Fatalf("metrics = %+v", m)
	}

	rec = doRequest(t, srv, http.MethodGet,
		"/api/v1/networks/"+id+"/dashboard?window_minutes=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero window: status %d", rec.Code)
	}
}

func TestSystemInfo(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/system/info", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var info service.SystemInfo
	decodeInto(t, rec, &info)
	if info.StartedAt.IsZero() {
		t.Fatal("started_at not set")
	}
}
