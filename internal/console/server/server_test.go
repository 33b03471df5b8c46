package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/pocketsiem/internal/blocklist"
	"github.com/xela07ax/pocketsiem/internal/console/handler"
	"github.com/xela07ax/pocketsiem/internal/domain"
	"github.com/xela07ax/pocketsiem/internal/journal"
	"github.com/xela07ax/pocketsiem/internal/screen"
	"github.com/xela07ax/pocketsiem/internal/threatapi"
	"github.com/xela07ax/pocketsiem/internal/view"
)

type fakeDashboard struct{ st screen.State[view.DashboardView] }

func (f fakeDashboard) State() screen.State[view.DashboardView] { return f.st }

type fakeMonitor struct {
	st     screen.State[view.MonitorView]
	active bool
}

func (f *fakeMonitor) State() screen.State[view.MonitorView] { return f.st }
func (f *fakeMonitor) Retry() bool { return f.active }

type fakeAlerts struct {
	active   bool
	blockErr error
	bl       *blocklist.Manager
}

func (f *fakeAlerts) ShowDemo() view.AlertView {
	f.active = true
	return view.BuildAlert(domain.DemoThreatAlert(time.Now()))
}

func (f *fakeAlerts) Active() (view.AlertView, bool) {
	if !f.active {
		return view.AlertView{}, false
	}
	return view.BuildAlert(domain.DemoThreatAlert(time.Now())), true
}

func (f *fakeAlerts) Block(ctx context.Context) (screen.Outcome, error) {
	if !f.active {
		return screen.Outcome{}, screen.ErrNoActiveAlert
	}
	if f.blockErr != nil {
		return screen.Outcome{}, f.blockErr
	}
	f.active = false
	return screen.Outcome{Decision: journal.Decision{Action: journal.ActionBlock}}, nil
}

func (f *fakeAlerts) Allow(ctx context.Context) (screen.Outcome, error) {
	if !f.active {
		return screen.Outcome{}, screen.ErrNoActiveAlert
	}
	f.active = false
	return screen.Outcome{Decision: journal.Decision{Action: journal.ActionAllow}}, nil
}

func (f *fakeAlerts) Unblock(ctx context.Context, ip string) (journal.Decision, error) {
	if err := f.bl.Unblock(ctx, ip); err != nil {
		return journal.Decision{}, err
	}
	return journal.Decision{IP: ip, Action: journal.ActionUnblock}, nil
}

type fakeThreats struct {
	lastReport domain.ThreatReportRequest
	err        error
}

func (f *fakeThreats) CheckIPReputation(ctx context.Context, ip string) (domain.IpReputation, error) {
	if !domain.IsValidIP(ip) {
		return domain.IpReputation{}, &threatapi.RequestError{Endpoint: threatapi.EndpointReputation, Err: threatapi.ErrInvalidIP}
	}
	return domain.IpReputation{IPAddress: ip, RiskScore: 90, ThreatLevel: domain.ScaleCritical}, f.err
}

func (f *fakeThreats) ReportThreat(ctx context.Context, req domain.ThreatReportRequest) (domain.ThreatReport, error) {
	f.lastReport = req
	if f.err != nil {
		return domain.ThreatReport{}, f.err
	}
	return domain.ThreatReport{ID: 1, AppName: req.AppName, TargetIP: req.TargetIP, DeviceID: req.DeviceID}, nil
}

func (f *fakeThreats) GetReportsForIP(ctx context.Context, ip string) ([]domain.ThreatReport, error) {
	return nil, f.err
}

func (f *fakeThreats) GetReportsForApp(ctx context.Context, app string) ([]domain.ThreatReport, error) {
	return []domain.ThreatReport{{ID: 2, AppName: app, TargetIP: "10.0.0.1"}}, f.err
}

func (f *fakeThreats) GetRecentReportCount(ctx context.Context, ip string) (int, error) {
	return 3, f.err
}

type testEnv struct {
	srv     *ViewServer
	monitor *fakeMonitor
	alerts  *fakeAlerts
	threats *fakeThreats
	bl      *blocklist.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	bl := blocklist.NewManager(nil, logger)
	env := &testEnv{
		monitor: &fakeMonitor{active: true},
		alerts:  &fakeAlerts{bl: bl},
		threats: &fakeThreats{},
		bl:      bl,
	}
	dash := fakeDashboard{st: screen.State[view.DashboardView]{
		Screen: "dashboard", Phase: screen.PhaseReady, HasData: true, Seq: 1,
		Data: view.DashboardView{TrustScore: 65, TrustLabel: "CAUTION", DataUsage: "2.4 GB"},
	}}

	env.srv = NewViewServer(logger, prometheus.NewRegistry(),
		handler.NewScreenHandler(dash, env.monitor),
		handler.NewAlertHandler(env.alerts, env.bl, nil, logger),
		handler.NewThreatHandler(env.threats, "device-1", logger),
	)
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestTraceIDHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Trace-ID"); got != "trace-123" {
		t.Errorf("trace id = %q", got)
	}

	rec = env.do(http.MethodGet, "/health", "")
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Error("trace id not generated")
	}
}

func TestTracingMiddleware_StoresTraceInContext(t *testing.T) {
	var seen string
	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = threatapi.TraceIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Errorf("trace in context = %q", seen)
	}
}

func TestScreens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/screens/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", rec.Code)
	}
	var st screen.State[view.DashboardView]
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Phase != screen.PhaseReady || st.Data.DataUsage != "2.4 GB" {
		t.Errorf("dashboard state = %+v", st)
	}

	if rec := env.do(http.MethodPost, "/api/v1/screens/monitor/retry", ""); rec.Code != http.StatusAccepted {
		t.Errorf("retry = %d", rec.Code)
	}
	env.monitor.active = false
	if rec := env.do(http.MethodPost, "/api/v1/screens/monitor/retry", ""); rec.Code != http.StatusConflict {
		t.Errorf("retry on inactive screen = %d", rec.Code)
	}
}

func TestAlertFlow(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/api/v1/alerts/active", ""); rec.Code != http.StatusNoContent {
		t.Errorf("active before demo = %d", rec.Code)
	}
	rec := env.do(http.MethodPost, "/api/v1/alerts/block", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("block without alert = %d", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "No active threat alert." {
		t.Errorf("error body = %v", body)
	}

	if rec := env.do(http.MethodPost, "/api/v1/alerts/demo", ""); rec.Code != http.StatusOK {
		t.Fatalf("demo = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/v1/alerts/active", ""); rec.Code != http.StatusOK {
		t.Errorf("active after demo = %d", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/api/v1/alerts/allow", ""); rec.Code != http.StatusOK {
		t.Errorf("allow = %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/api/v1/alerts/decisions", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("decisions without history = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAlertBlock_InProgress(t *testing.T) {
	env := newTestEnv(t)
	env.alerts.active = true
	env.alerts.blockErr = screen.ErrDecisionInProgress

	rec := env.do(http.MethodPost, "/api/v1/alerts/block", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAlertBlock_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.alerts.active = true
	env.alerts.blockErr = &threatapi.RequestError{
		Endpoint: threatapi.EndpointReport,
		Err:      &threatapi.TimeoutError{Timeout: 10 * time.Second},
	}

	rec := env.do(http.MethodPost, "/api/v1/alerts/block", "")
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body["error"] != threatapi.TimeoutMessage || body["kind"] != "timeout" {
		t.Errorf("body = %v", body)
	}
}

func TestBlocklistRoutes(t *testing.T) {
	env := newTestEnv(t)
	if err := env.bl.Block(context.Background(), "2001:db8::1"); err != nil {
		t.Fatal(err)
	}

	rec := env.do(http.MethodGet, "/api/v1/blocklist/", "")
	var ips []string
	if err := json.NewDecoder(rec.Body).Decode(&ips); err != nil || len(ips) != 1 {
		t.Fatalf("list = %v (%v)", ips, err)
	}

	if rec := env.do(http.MethodDelete, "/api/v1/blocklist/2001:db8::1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("unblock = %d", rec.Code)
	}
	if env.bl.IsBlocked("2001:db8::1") {
		t.Error("ip still blocked")
	}

	rec = env.do(http.MethodDelete, "/api/v1/blocklist/bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unblock bogus = %d", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != threatapi.InvalidIPMessage {
		t.Errorf("body = %v", body)
	}
}

func TestReputation(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/api/v1/reputation?ip=198.51.100.42", ""); rec.Code != http.StatusOK {
		t.Errorf("reputation = %d", rec.Code)
	}
	rec := env.do(http.MethodGet, "/api/v1/reputation?ip=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid ip = %d", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != threatapi.InvalidIPMessage {
		t.Errorf("body = %v", body)
	}
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/reports/", `{"appName":"Unknown App","targetIp":"198.51.100.42"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("report = %d %s", rec.Code, rec.Body.String())
	}
	if env.threats.lastReport.DeviceID != "device-1" {
		t.Errorf("device id not filled: %+v", env.threats.lastReport)
	}

	if rec := env.do(http.MethodPost, "/api/v1/reports/", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/api/v1/reports/198.51.100.42", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("reports for ip = %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/v1/reports/app/Chrome", "")
	var list []domain.ThreatReport
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list) != 1 || list[0].AppName != "Chrome" {
		t.Errorf("reports for app = %+v (%v)", list, err)
	}

	rec = env.do(http.MethodGet, "/api/v1/reports/198.51.100.42/count", "")
	var count struct {
		IP    string `json:"ip"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&count); err != nil || count.Count != 3 || count.IP != "198.51.100.42" {
		t.Errorf("count = %+v (%v)", count, err)
	}
}

func TestReports_UpstreamStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"http error", &threatapi.RequestError{Endpoint: threatapi.EndpointReport, Err: &threatapi.HTTPError{StatusCode: 500}}, http.StatusBadGateway},
		{"network", &threatapi.RequestError{Endpoint: threatapi.EndpointReport, Err: &threatapi.NetworkError{Err: errors.New("connection refused")}}, http.StatusServiceUnavailable},
		{"invalid request", threatapi.ErrInvalidRequest, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.threats.err = tt.err
			rec := env.do(http.MethodPost, "/api/v1/reports/", `{"appName":"x","targetIp":"10.0.0.1"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
