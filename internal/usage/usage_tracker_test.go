package usage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTracker_RecordAggregatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	tracker, err := NewTracker(dir, WithSaveDelay(0))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	ctx := WithOperation(WithDocument(context.Background(), "doc-1"), "model call")
	tracker.Record(ctx, "gemini-2.5-flash", 10, 5)
	tracker.Record(ctx, "gemini-2.5-flash", 2, 3)
	tracker.Record(context.Background(), "gemini-pro", 1, 1)

	stats := tracker.Stats()
	if stats.Total.Input != 13 || stats.Total.Output != 9 || stats.Total.Total != 22 || stats.Total.Calls != 3 {
		t.Fatalf("Total=%+v, want calls=3 input=13 output=9 total=22", stats.Total)
	}
	if got := stats.ByModel["gemini-2.5-flash"]; got.Total != 20 || got.Calls != 2 {
		t.Fatalf("ByModel[flash]=%+v, want total=20 calls=2", got)
	}
	if got := stats.ByOperation["model call"]; got.Total != 20 {
		t.Fatalf("ByOperation[model call]=%+v, want total=20", got)
	}
	if got := stats.ByDocument["doc-1"]; got.Total != 20 {
		t.Fatalf("ByDocument[doc-1]=%+v, want total=20", got)
	}
	if got := stats.ByDocument["unknown"]; got.Total != 2 {
		t.Fatalf("ByDocument[unknown]=%+v, want total=2", got)
	}

	if err := tracker.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read usage.json: %v", err)
	}
	var persisted UsageData
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal usage.json: %v", err)
	}
	if persisted.Aggregate.Total.Total != 22 {
		t.Fatalf("persisted total=%d, want 22", persisted.Aggregate.Total.Total)
	}
}

func TestTracker_LoadsExistingCounts(t *testing.T) {
	dir := t.TempDir()
	first, err := NewTracker(dir, WithSaveDelay(0))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	first.Record(context.Background(), "m", 4, 6)
	if err := first.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second, err := NewTracker(dir, WithSaveDelay(0))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	second.Record(context.Background(), "m", 1, 0)
	if got := second.Stats().ByModel["m"]; got.Total != 11 || got.Calls != 2 {
		t.Fatalf("ByModel[m]=%+v, want total=11 calls=2", got)
	}
	if second.Updated().IsZero() {
		t.Fatalf("Updated not set")
	}
}

func TestTracker_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	tracker, err := NewTracker(dir)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if got := tracker.Stats().Total; got.Total != 0 {
		t.Fatalf("Total=%+v, want empty", got)
	}
	tracker.Record(context.Background(), "m", 1, 1)
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestTracker_DebouncedSave(t *testing.T) {
	dir := t.TempDir()
	tracker, err := NewTracker(dir, WithSaveDelay(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.Record(context.Background(), "m", 1, 2)

	path := filepath.Join(dir, FileName)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("usage.json was not written by the debounced save")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestTracker_StatsIsACopy(t *testing.T) {
	tracker, err := NewTracker(t.TempDir(), WithSaveDelay(0))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.Record(context.Background(), "m", 1, 1)
	stats := tracker.Stats()
	stats.ByModel["m"] = TokenCounts{}
	if got := tracker.Stats().ByModel["m"]; got.Total != 2 {
		t.Fatalf("mutating Stats leaked into tracker: %+v", got)
	}
}

func TestContextHelpers(t *testing.T) {
	tracker, err := NewTracker(t.TempDir(), WithSaveDelay(0))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	ctx := NewContext(context.Background(), tracker)
	if got := FromContext(ctx); got != tracker {
		t.Fatalf("FromContext mismatch")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("FromContext on empty context = %v, want nil", got)
	}
}
