package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradecollector/config"
	"tradecollector/internal/bitget/memorystore"
	"tradecollector/internal/cache"
	"tradecollector/internal/metrics"
	"tradecollector/internal/query"
	"tradecollector/pkg/storage/filestore"

	"go.uber.org/zap"
)

func apiConfig() config.APIConfig {
	return config.APIConfig{
		CacheTTL:             time.Minute,
		MaxRecordsPerRequest: 1000,
		DefaultLimit:         100,
		LatestDefaultLimit:   50,
		LatestMaxLimit:       500,
		SymbolDefaultLimit:   100,
		FreshWithin:          time.Hour,
		StaleWithin:          2 * time.Hour,
		EnableCORS:           true,
	}
}

func newTestServer(t *testing.T, store *filestore.Store) (*Server, *metrics.Metrics) {
	t.Helper()
	cfg := apiConfig()
	m := metrics.New()
	rc := cache.New(store, cfg.CacheTTL, m, zap.NewNop())
	svc := query.NewService(rc, query.Limits{
		MaxRecordsPerRequest: cfg.MaxRecordsPerRequest,
		LatestMaxLimit:       cfg.LatestMaxLimit,
		FreshWithin:          cfg.FreshWithin,
		StaleWithin:          cfg.StaleWithin,
	})
	return NewServer(cfg, config.MetricsConfig{Enabled: true, Path: "/metrics"}, svc, m, zap.NewNop()), m
}

func seededStore(t *testing.T, n int) *filestore.Store {
	t.Helper()
	store := filestore.New(filepath.Join(t.TempDir(), "trading_data.json"))
	now := time.Now()
	records := make([]memorystore.TradeRecord, n)
	for i := range records {
		symbol := "BTCUSDT"
		if i%2 == 1 {
			symbol = "ETHUSDT"
		}
		records[i] = memorystore.TradeRecord{
			RecordedAt: memorystore.FormatRecordedAt(now.Add(time.Duration(i-n) * time.Second)),
			Symbol:     symbol,
			Data: memorystore.TradeData{
				Price:   json.RawMessage(`"2"`),
				Size:    json.RawMessage(`"3"`),
				Side:    json.RawMessage(`"buy"`),
				TradeID: json.RawMessage(fmt.Sprintf(`"%d"`, i)),
				Ts:      json.RawMessage(`"1709294400000"`),
			},
		}
	}
	if err := store.Write(records); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func get(t *testing.T, s *Server, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code, body
}

// go test -v --run TestTradingEndpoint
func TestTradingEndpoint(t *testing.T) {
	s, _ := newTestServer(t, seededStore(t, 25))

	code, body := get(t, s, "/api/trading?limit=10&offset=20")
	if code != http.StatusOK || body["status"] != "success" {
		t.Fatalf("code=%d body=%v", code, body)
	}
	if data := body["data"].([]any); len(data) != 5 {
		t.Errorf("returned %d records, want 5", len(data))
	}
	p := body["pagination"].(map[string]any)
	if p["total_records"] != float64(25) || p["has_more"] != false {
		t.Errorf("pagination = %v", p)
	}
	if f := body["filters"].(map[string]any); f["symbol"] != nil {
		t.Errorf("filters = %v", f)
	}

	// Bad numbers fall back to defaults instead of failing.
	_, body = get(t, s, "/api/trading?limit=abc&offset=-5")
	p = body["pagination"].(map[string]any)
	if p["limit"] != float64(100) || p["offset"] != float64(0) {
		t.Errorf("coerced pagination = %v", p)
	}

	_, body = get(t, s, "/api/trading?symbol=ethusdt")
	if p = body["pagination"].(map[string]any); p["total_records"] != float64(12) {
		t.Errorf("filtered total = %v, want 12", p["total_records"])
	}
}

// go test -v --run TestLatestAndSymbolEndpoints
func TestLatestAndSymbolEndpoints(t *testing.T) {
	s, _ := newTestServer(t, seededStore(t, 60))

	_, body := get(t, s, "/api/trading/latest")
	if body["total_records"] != float64(50) {
		t.Errorf("latest default = %v, want 50", body["total_records"])
	}

	_, body = get(t, s, "/api/trading/symbol/btcusdt?limit=5")
	if body["symbol"] != "BTCUSDT" || body["total_records"] != float64(5) {
		t.Errorf("symbol body = %v", body)
	}
	last := body["data"].([]any)[4].(map[string]any)
	if last["data"].(map[string]any)["tradeId"] != "58" {
		t.Errorf("last BTCUSDT trade = %v, want 58", last)
	}
}

// go test -v --run TestStatsAndHealthEndpoints
func TestStatsAndHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t, seededStore(t, 4))

	code, body := get(t, s, "/api/trading/stats")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	stats := body["stats"].(map[string]any)
	if stats["total_trades"] != float64(4) || stats["total_volume_usd"] != float64(24) {
		t.Errorf("stats = %v", stats)
	}
	btc := stats["symbols_breakdown"].(map[string]any)["BTCUSDT"].(map[string]any)
	if btc["count"] != float64(2) || btc["volume"] != float64(12) {
		t.Errorf("BTCUSDT breakdown = %v", btc)
	}
	if _, ok := body["cache_info"].(map[string]any)["cache_age_seconds"]; !ok {
		t.Error("missing cache_age_seconds")
	}

	_, body = get(t, s, "/api/health")
	if body["status"] != "healthy" {
		t.Errorf("health status = %v", body["status"])
	}
	if ds := body["data_status"].(map[string]any); ds["freshness"] != "fresh" || ds["total_records"] != float64(4) {
		t.Errorf("data_status = %v", ds)
	}
	if disk := body["disk_status"].(map[string]any); disk["data_file_exists"] != true {
		t.Errorf("disk_status = %v", disk)
	}
}

// go test -v --run TestEmptyStore
func TestEmptyStore(t *testing.T) {
	s, _ := newTestServer(t, filestore.New(filepath.Join(t.TempDir(), "trading_data.json")))

	_, body := get(t, s, "/api/health")
	if body["status"] != "warning" || body["data_status"].(map[string]any)["freshness"] != "unknown" {
		t.Errorf("health on empty store = %v", body)
	}

	_, body = get(t, s, "/")
	if qs := body["quick_stats"].(map[string]any); qs["total_trades"] != float64(0) || qs["last_update"] != nil {
		t.Errorf("quick_stats = %v", qs)
	}
}

// go test -v --run TestNotFoundAndInternalError
func TestNotFoundAndInternalError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trading_data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, filestore.New(path))

	code, body := get(t, s, "/api/nope")
	if code != http.StatusNotFound || len(body["available_endpoints"].([]any)) != 6 {
		t.Errorf("404 = %d %v", code, body)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trading", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "decode") || !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Errorf("500 body leaks detail: %s", rec.Body.String())
	}
}

// go test -v --run TestCORSAndMetrics
func TestCORSAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, seededStore(t, 2))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/trading", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	get(t, s, "/api/trading")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `tradecollector_api_http_requests_total{code="200",route="/api/trading"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", rec.Body.String())
	}
}
