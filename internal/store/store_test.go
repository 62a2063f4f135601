package store

import (
	"testing"

	"github.com/danielpatrickdp/synapse/internal/engine"
	"github.com/danielpatrickdp/synapse/internal/event"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func clicks(selectors ...string) []event.TypedEvent {
	events := make([]event.TypedEvent, len(selectors))
	for i, sel := range selectors {
		events[i] = event.TypedEvent{
			Type:    "user_action.click",
			Context: event.Context{TabID: "tab-1"},
			Payload: event.Payload{TargetSelector: sel},
		}
	}
	return events
}

func TestAppendAndLoadEvents(t *testing.T) {
	s := memStore(t)

	if err := s.AppendEvents(clicks("#a", "#b", "#c")); err != nil {
		t.Fatalf("append: %v", err)
	}
	n, err := s.CountEvents()
	if err != nil || n != 3 {
		t.Fatalf("expected 3 events, got %d (%v)", n, err)
	}

	events, err := s.LoadEvents(0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 loaded, got %d", len(events))
	}
	if events[0].Payload.TargetSelector != "#a" || events[2].Payload.TargetSelector != "#c" {
		t.Fatalf("insertion order lost: %+v", events)
	}

	limited, err := s.LoadEvents(2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("expected 2 with limit, got %d (%v)", len(limited), err)
	}
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	s := memStore(t)
	if err := s.AppendEvents(nil); err != nil {
		t.Fatalf("empty append: %v", err)
	}
	if n, _ := s.CountEvents(); n != 0 {
		t.Fatalf("expected 0 events, got %d", n)
	}
}

func TestReplayRestoresLearnedState(t *testing.T) {
	s := memStore(t)
	batch := clicks(
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
	)
	if err := s.AppendEvents(batch); err != nil {
		t.Fatalf("append: %v", err)
	}

	cfg := engine.DefaultConfig()
	cfg.Model.Seed = 42
	e := engine.New(cfg)

	n, err := s.Replay(e, 4)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != len(batch) {
		t.Fatalf("expected %d replayed, got %d", len(batch), n)
	}
	if e.VocabularySize() != 4 {
		t.Fatalf("expected vocabulary 4 after replay, got %d", e.VocabularySize())
	}
	if e.TransitionMappings() == 0 {
		t.Fatal("expected transitions after replay")
	}
}

func TestPredictionLogRoundTrip(t *testing.T) {
	s := memStore(t)

	err := s.LogPrediction("corr-1", engine.PredictResult{
		Confidence:  0.1,
		IsDifficult: true,
		Reason:      "low_confidence",
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	err = s.LogPrediction("corr-2", engine.PredictResult{
		Confidence: 0.8,
		Suggestions: []engine.Suggestion{
			{Selector: "#next", Confidence: 0.95, Source: "frequency"},
		},
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	records, err := s.RecentPredictions(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Newest first.
	if records[0].CorrelationID != "corr-2" || records[0].IsDifficult {
		t.Fatalf("unexpected newest record: %+v", records[0])
	}
	if records[1].Reason != "low_confidence" || !records[1].IsDifficult {
		t.Fatalf("unexpected oldest record: %+v", records[1])
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := memStore(t)

	if _, ok, err := s.LatestSnapshot(); err != nil || ok {
		t.Fatalf("expected no snapshot yet, ok=%v err=%v", ok, err)
	}

	cfg := engine.DefaultConfig()
	cfg.Model.Seed = 42
	e := engine.New(cfg)
	res := e.Train(clicks("#a", "#b", "#c"))

	meta, err := s.SaveSnapshot(res)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.SnapshotID == "" {
		t.Fatal("expected a snapshot id")
	}
	if meta.VocabSize != 3 {
		t.Fatalf("expected vocab size 3, got %d", meta.VocabSize)
	}

	got, ok, err := s.LatestSnapshot()
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.SnapshotID != meta.SnapshotID || got.VocabSize != 3 || got.TransitionCount != 2 {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, meta)
	}
}

// Snapshots are written from whatever goroutine holds the training result,
// so they must not read live engine state. Under the race detector this
// fails if SaveSnapshot ever reaches back into the engine.
func TestSnapshotConcurrentWithTraining(t *testing.T) {
	s := memStore(t)

	cfg := engine.DefaultConfig()
	cfg.Model.Seed = 42
	e := engine.New(cfg)
	res := e.Train(clicks("#a", "#b", "#c", "#d"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			e.Train(clicks("#a", "#b", "#c", "#d"))
		}
	}()

	for i := 0; i < 20; i++ {
		if _, err := s.SaveSnapshot(res); err != nil {
			t.Errorf("save: %v", err)
		}
	}
	<-done
}
