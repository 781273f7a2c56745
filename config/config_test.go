package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// go test -v --run TestLoadFileDefaults
func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	if got := len(cfg.Bitget.WS.Symbols); got != 10 {
		t.Errorf("default symbols = %d, want 10", got)
	}
	if cfg.Collector.FlushEvery != 50 || cfg.Collector.FlushInterval != 5*time.Minute {
		t.Errorf("flush policy = %d/%v", cfg.Collector.FlushEvery, cfg.Collector.FlushInterval)
	}
	if cfg.Store.MaxRecords != 10000 || cfg.Store.RetainCount() != 8000 {
		t.Errorf("store = %d/%d", cfg.Store.MaxRecords, cfg.Store.RetainCount())
	}
	if cfg.API.CacheTTL != 60*time.Second || cfg.API.Addr() != "0.0.0.0:5000" {
		t.Errorf("api = %v %s", cfg.API.CacheTTL, cfg.API.Addr())
	}
	if cfg.Bitget.WS.MaxReconnects != 100 {
		t.Errorf("max_reconnects = %d", cfg.Bitget.WS.MaxReconnects)
	}
}

// go test -v --run TestLoadFileOverrides
func TestLoadFileOverrides(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
bitget:
  ws:
    symbols: [BTCUSDT, ETHUSDT]
store:
  max_records: 100
  retain_ratio: 0.5
api:
  port: 8080
  cache_ttl: 5s
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if strings.Join(cfg.Bitget.WS.Symbols, ",") != "BTCUSDT,ETHUSDT" {
		t.Errorf("symbols = %v", cfg.Bitget.WS.Symbols)
	}
	if cfg.Store.RetainCount() != 50 {
		t.Errorf("retain = %d, want 50", cfg.Store.RetainCount())
	}
	if cfg.API.Port != 8080 || cfg.API.CacheTTL != 5*time.Second {
		t.Errorf("api = %d %v", cfg.API.Port, cfg.API.CacheTTL)
	}
}

// go test -v --run TestLoadFileInvalid
func TestLoadFileInvalid(t *testing.T) {
	cases := map[string]string{
		"no symbols":    "bitget:\n  ws:\n    symbols: []\n",
		"zero flush":    "collector:\n  flush_every: 0\n",
		"bad ratio":     "store:\n  retain_ratio: 1.5\n",
		"bad port":      "api:\n  port: 70000\n",
		"stale < fresh": "api:\n  fresh_within: 3h\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// go test -v --run TestRetainCount
func TestRetainCount(t *testing.T) {
	tests := []struct {
		max   int
		ratio float64
		want  int
	}{
		{10000, 0.8, 8000},
		{10, 0.8, 8},
		{1, 0.5, 1},
		{3, 0.1, 1},
		{5, 1, 5},
	}
	for _, tt := range tests {
		s := StoreConfig{MaxRecords: tt.max, RetainRatio: tt.ratio}
		if got := s.RetainCount(); got != tt.want {
			t.Errorf("RetainCount(%d, %v) = %d, want %d", tt.max, tt.ratio, got, tt.want)
		}
	}
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		DBName: "trades", SSLMode: "disable", TimeZone: "UTC",
	}

	want := "host=db port=5432 user=u password=p dbname=trades sslmode=disable TimeZone=UTC"
	if got := pg.DSN("dev"); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
	if got := pg.AdminDSN(); !strings.Contains(got, "dbname=postgres ") {
		t.Errorf("AdminDSN = %q", got)
	}
}
