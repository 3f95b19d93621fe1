package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pricewatch/internal/app"
	"pricewatch/internal/config"
	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/market"
	"pricewatch/internal/models"
	"pricewatch/internal/monitor"
	"pricewatch/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	app    *app.App
	oracle *market.StaticOracle
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "alerts.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	cfg := &config.Config{
		Monitor:       config.MonitorConfig{CheckInterval: 300, CacheTTL: 60, StopTimeout: 2},
		Notifications: config.NotificationConfig{Timeout: 5, Log: config.LogChannelConfig{Enabled: true}},
	}
	oracle := market.NewStaticOracle(map[string]float64{"SYM": 95})
	a := app.NewWithStore(cfg, zerolog.Nop(), st, oracle)
	t.Cleanup(func() { a.Close() })

	return &testEnv{app: a, oracle: oracle, server: NewServer(a, zerolog.Nop())}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAlertLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/alerts", map[string]interface{}{
		"symbol": "sym", "threshold": 100, "direction": "above",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.Alert
	decode(t, w, &created)
	if created.Symbol != "SYM" || created.Status != models.StatusActive || created.ID == "" {
		t.Errorf("unexpected alert %+v", created)
	}

	w = env.do(t, http.MethodGet, "/alerts", nil)
	var active []models.Alert
	decode(t, w, &active)
	if len(active) != 1 || active[0].ID != created.ID {
		t.Errorf("expected the new alert in the active list, got %+v", active)
	}

	w = env.do(t, http.MethodGet, "/alerts/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for get, got %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/alerts/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/alerts/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/alerts/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for deleted alert, got %d", w.Code)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty symbol", map[string]interface{}{"symbol": "", "threshold": 100}},
		{"zero threshold", map[string]interface{}{"symbol": "SYM", "threshold": 0}},
		{"negative threshold", map[string]interface{}{"symbol": "SYM", "threshold": -5}},
		{"bad direction", map[string]interface{}{"symbol": "SYM", "threshold": 100, "direction": "sideways"}},
		{"not json", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/alerts", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			var resp errorResponse
			decode(t, w, &resp)
			if resp.Error == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestMonitorEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var status monitorStatus
	decode(t, env.do(t, http.MethodGet, "/monitor", nil), &status)
	if status.Running || status.CheckIntervalSeconds != 300 {
		t.Errorf("unexpected initial status %+v", status)
	}

	w := env.do(t, http.MethodPut, "/monitor/interval", map[string]int{"seconds": 60})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	decode(t, w, &status)
	if status.CheckIntervalSeconds != 60 {
		t.Errorf("expected 60s interval, got %+v", status)
	}

	w = env.do(t, http.MethodPut, "/monitor/interval", map[string]int{"seconds": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero interval, got %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/monitor/interval", map[string]int64{"seconds": 9_300_000_000})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an interval that overflows, got %d", w.Code)
	}
	decode(t, env.do(t, http.MethodGet, "/monitor", nil), &status)
	if status.CheckIntervalSeconds != 60 {
		t.Errorf("rejected interval must leave the old one, got %+v", status)
	}

	decode(t, env.do(t, http.MethodPost, "/monitor/start", nil), &status)
	if !status.Running || status.Changed == nil || !*status.Changed {
		t.Errorf("expected start to change state, got %+v", status)
	}
	decode(t, env.do(t, http.MethodPost, "/monitor/start", nil), &status)
	if status.Changed == nil || *status.Changed {
		t.Errorf("second start should not change state, got %+v", status)
	}
	decode(t, env.do(t, http.MethodPost, "/monitor/stop", nil), &status)
	if status.Running {
		t.Errorf("expected stopped monitor, got %+v", status)
	}
}

func TestMonitorCheckTriggers(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/alerts", map[string]interface{}{"symbol": "SYM", "threshold": 100})

	var report monitor.TickReport
	decode(t, env.do(t, http.MethodPost, "/monitor/check", nil), &report)
	if report.Alerts != 1 || len(report.Triggered) != 0 {
		t.Errorf("expected no trigger at 95, got %+v", report)
	}

	env.oracle.Set("SYM", 101)
	env.app.Prices.Invalidate("SYM")

	decode(t, env.do(t, http.MethodPost, "/monitor/check", nil), &report)
	if len(report.Triggered) != 1 || !report.Triggered[0].Notified {
		t.Fatalf("expected one notified trigger, got %+v", report)
	}

	var history []models.Alert
	decode(t, env.do(t, http.MethodGet, "/alerts/history", nil), &history)
	if len(history) != 1 || history[0].TriggeredPrice == nil || *history[0].TriggeredPrice != 101 {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestPriceEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/prices/sym", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var q models.PriceQuote
	decode(t, w, &q)
	if q.Symbol != "SYM" || q.Price != 95 {
		t.Errorf("unexpected quote %+v", q)
	}

	w = env.do(t, http.MethodGet, "/prices/UNKNOWN", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for unknown symbol, got %d", w.Code)
	}
}

// brokenStore fails every ListActive call.
type brokenStore struct {
	store.AlertStore
}

func (brokenStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	return nil, apperrors.NewPersistenceError("read", "alerts.json", errors.New("disk gone"))
}

func TestServerErrorLoggedWithRequestLogger(t *testing.T) {
	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "alerts.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	cfg := &config.Config{
		Monitor:       config.MonitorConfig{CheckInterval: 300, CacheTTL: 60, StopTimeout: 2},
		Notifications: config.NotificationConfig{Timeout: 5},
	}
	a := app.NewWithStore(cfg, zerolog.Nop(), brokenStore{st}, market.NewStaticOracle(nil))
	t.Cleanup(func() { a.Close() })

	var logs bytes.Buffer
	env := &testEnv{app: a, server: NewServer(a, zerolog.New(&logs))}

	w := env.do(t, http.MethodGet, "/alerts", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if !strings.Contains(body["error"], "disk gone") {
		t.Errorf("unexpected error body %v", body)
	}

	out := logs.String()
	if !strings.Contains(out, `"message":"Request failed"`) || !strings.Contains(out, `"path":"/alerts"`) {
		t.Errorf("expected request-scoped error log, got %s", out)
	}

	logs.Reset()
	env.do(t, http.MethodGet, "/alerts/missing", nil)
	if strings.Contains(logs.String(), "Request failed") {
		t.Errorf("client errors should not log at error level: %s", logs.String())
	}
}
