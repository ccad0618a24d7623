package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func newHubLogger(hub *StreamHub, level slog.Level) *slog.Logger {
	base := slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: level})
	return slog.New(newStreamHandler(base, hub))
}

func TestHubHandlerPromotesRunFields(t *testing.T) {
	hub := NewStreamHub(16)
	logger := newHubLogger(hub, slog.LevelInfo).
		With(String(FieldComponent, "minter")).
		With(String(FieldRunID, "run-99"), String(FieldStage, "minting"))

	logger.Info("mint confirmed", Signature("5xSig"), Int("sequence", 2))

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.RunID != "run-99" || evt.Component != "minter" || evt.Stage != "minting" {
		t.Fatalf("bound fields not promoted: %+v", evt)
	}
	if evt.Signature != "5xSig" {
		t.Fatalf("expected signature to be promoted, got %+v", evt)
	}
	if evt.Fields["sequence"] != "2" || len(evt.Fields) != 1 {
		t.Fatalf("unexpected extra fields: %v", evt.Fields)
	}
}

func TestHubHandlerCallSiteWins(t *testing.T) {
	hub := NewStreamHub(16)
	logger := newHubLogger(hub, slog.LevelInfo).With(String(FieldStage, "preparing"))

	logger.Info("stage handoff", String(FieldStage, "registering_collection"))

	events, _ := hub.Tail(1)
	if events[0].Stage != "registering_collection" {
		t.Fatalf("expected call-site stage, got %q", events[0].Stage)
	}
}

func TestHubHandlerQualifiesGroupedKeys(t *testing.T) {
	hub := NewStreamHub(16)
	logger := newHubLogger(hub, slog.LevelInfo).WithGroup("ledger").With(String(FieldRunID, "inner"))

	logger.Info("balance read", Uint64("lamports", 5000))

	events, _ := hub.Tail(1)
	evt := events[0]
	if evt.RunID != "" {
		t.Fatalf("grouped run_id must not shadow the promoted field, got %q", evt.RunID)
	}
	if evt.Fields["ledger.run_id"] != "inner" || evt.Fields["ledger.lamports"] != "5000" {
		t.Fatalf("unexpected grouped fields: %v", evt.Fields)
	}
}

func TestHubHandlerNilHub(t *testing.T) {
	base := slog.NewTextHandler(discardWriter{}, nil)
	if newStreamHandler(base, nil) != base {
		t.Fatal("expected base handler when hub is nil")
	}
}

func TestHubHandlerFollowsBaseLevel(t *testing.T) {
	hub := NewStreamHub(16)
	logger := newHubLogger(hub, slog.LevelWarn)
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected INFO disabled under a WARN base")
	}
	logger.Info("dropped")
	logger.Warn("kept")
	events, _ := hub.Tail(10)
	if len(events) != 1 || events[0].Message != "kept" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStreamHubRingEvictsOldest(t *testing.T) {
	hub := NewStreamHub(2)
	for _, msg := range []string{"one", "two", "three"} {
		hub.Publish(LogEvent{Message: msg})
	}
	if first := hub.FirstSequence(); first != 2 {
		t.Fatalf("expected oldest buffered sequence 2, got %d", first)
	}
	tail, last := hub.Tail(0)
	if len(tail) != 2 || tail[0].Message != "two" || tail[1].Message != "three" || last != 3 {
		t.Fatalf("unexpected tail: %+v last=%d", tail, last)
	}

	events, next, err := hub.Fetch(context.Background(), 2, 10, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Message != "three" || next != 3 {
		t.Fatalf("unexpected fetch result: %+v next=%d", events, next)
	}

	stale, _, _ := hub.Fetch(context.Background(), 0, 1, false)
	if len(stale) != 1 || stale[0].Message != "two" {
		t.Fatalf("stale cursor should resume from oldest held event, got %+v", stale)
	}
}

func TestStreamHubFetchWaitsForPublish(t *testing.T) {
	hub := NewStreamHub(4)
	hub.Publish(LogEvent{Message: "seen"})

	done := make(chan []LogEvent, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 1, 10, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(LogEvent{Message: "fresh"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "fresh" {
			t.Fatalf("unexpected events: %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestStreamHubFetchHonorsCancel(t *testing.T) {
	hub := NewStreamHub(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
