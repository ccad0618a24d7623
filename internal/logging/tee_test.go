package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}
	var buf bytes.Buffer
	only := slog.NewJSONHandler(&buf, nil)
	if got := newTeeHandler(nil, only); got != only {
		t.Fatalf("expected lone sink to be returned as is, got %T", got)
	}
}

func TestTeeLoggerCopiesRunRecords(t *testing.T) {
	var console, runLog bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger := TeeLogger(base, slog.NewJSONHandler(&runLog, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger = logger.With(String(FieldRunID, "run-7"))

	logger.Debug("config lines chunk written", Int("offset", 10))
	logger.Warn("mint retry scheduled", Signature("5xSig"))

	if strings.Contains(console.String(), "config lines chunk written") {
		t.Fatal("console sink should drop debug records")
	}
	if !strings.Contains(console.String(), `"signature":"5xSig"`) {
		t.Fatalf("console sink missing warning: %s", console.String())
	}
	for _, want := range []string{"config lines chunk written", "mint retry scheduled", `"run_id":"run-7"`} {
		if !strings.Contains(runLog.String(), want) {
			t.Fatalf("run log missing %q: %s", want, runLog.String())
		}
	}
}

func TestTeeLoggerWithoutBase(t *testing.T) {
	var runLog bytes.Buffer
	logger := TeeLogger(nil, slog.NewJSONHandler(&runLog, nil))
	logger.WithGroup("mint").Info("instance minted", Address("Inst111"))
	if !strings.Contains(runLog.String(), `"mint":{"address":"Inst111"}`) {
		t.Fatalf("unexpected output: %s", runLog.String())
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestTeeHandlerReportsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	good := slog.NewJSONHandler(&buf, nil)
	bad := failingHandler{Handler: slog.NewJSONHandler(&bytes.Buffer{}, nil)}
	h := newTeeHandler(good, bad)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "run complete", 0)
	err := h.Handle(context.Background(), record)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("healthy sink should still receive the record")
	}
}
