package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mintline/internal/config"
	"mintline/internal/logging"
	"mintline/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("pipeline ready", logging.String("network", "devnet"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "mintline.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "pipeline ready") || !strings.Contains(string(data), "network=devnet") {
		t.Fatalf("unexpected log output: %s", data)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Outputs: []string{logPath, logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "0123456789abcdef")
	ctx = services.WithStage(ctx, "minting")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "minter"))
	log.Info("mint confirmed", logging.Int("index", 2), logging.String("name", "Phoenix #2"))
	log.Debug("hidden")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	for _, want := range []string{"INFO", "[minter]", "Run 01234567 (minting)", "mint confirmed", "index=2", `name="Phoenix #2"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug record should be filtered: %q", line)
	}
	if strings.Contains(line, "run_id=") {
		t.Fatalf("run_id should be folded into the subject: %q", line)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:  "json",
		Level:   "debug",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("upload retry", logging.String(logging.FieldEventType, "upload_retry"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode json line %q: %v", data, err)
	}
	if payload["level"] != "warn" || payload["msg"] != "upload retry" || payload["event_type"] != "upload_retry" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key: %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerPublishesToHub(t *testing.T) {
	hub := logging.NewStreamHub(16)
	logger, err := logging.New(logging.Options{
		Format:  "json",
		Outputs: []string{filepath.Join(t.TempDir(), "hub.log")},
		Hub:     hub,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With(logging.String(logging.FieldRunID, "run-7")).Info("collection registered")

	events, _ := hub.Tail(5)
	if len(events) != 1 || events[0].RunID != "run-7" || events[0].Message != "collection registered" {
		t.Fatalf("unexpected hub events: %+v", events)
	}
}

func TestPruneRunLogsKeepsCurrentRun(t *testing.T) {
	logDir := t.TempDir()
	old := time.Now().AddDate(0, 0, -10)
	for _, id := range []string{"stale", "current"} {
		file, _, err := logging.OpenRunLog(logDir, id)
		if err != nil {
			t.Fatalf("OpenRunLog: %v", err)
		}
		_ = file.Close()
		if err := os.Chtimes(logging.RunLogPath(logDir, id), old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneRunLogs(logging.NewNop(), logDir, 7, "current")
	if removed != 1 {
		t.Fatalf("expected one pruned log, got %d", removed)
	}
	if _, err := os.Stat(logging.RunLogPath(logDir, "current")); err != nil {
		t.Fatalf("current run log should remain: %v", err)
	}
	if _, err := os.Stat(logging.RunLogPath(logDir, "stale")); !os.IsNotExist(err) {
		t.Fatalf("stale run log should be removed, stat err=%v", err)
	}
}

func TestFormatSubject(t *testing.T) {
	cases := map[string]struct{ run, stage, want string }{
		"both":  {"abcdefghijkl", "uploading", "Run abcdefgh (uploading)"},
		"run":   {"abc", "", "Run abc"},
		"stage": {"", "minting", "(minting)"},
		"none":  {"", "", ""},
	}
	for name, tc := range cases {
		if got := logging.FormatSubject(tc.run, tc.stage); got != tc.want {
			t.Errorf("%s: got %q want %q", name, got, tc.want)
		}
	}
}
