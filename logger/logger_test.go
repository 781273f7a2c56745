package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tradecollector/config"
)

// go test -v --run TestNewWritesFile
func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "collector.log")
	log, err := New(config.LogConfig{Level: "info", Format: "json", OutputFile: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	log.Info("Trading data saved")
	log.Debug("hidden")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "Trading data saved") {
		t.Errorf("log file missing entry: %s", raw)
	}
	if strings.Contains(string(raw), "hidden") {
		t.Errorf("debug entry written at info level: %s", raw)
	}
}

// go test -v --run TestNewInvalidLevel
func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
