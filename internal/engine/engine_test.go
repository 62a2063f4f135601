package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/synapse/internal/event"
	"github.com/danielpatrickdp/synapse/internal/seqmodel"
)

// #region helpers

func testEngine() *Engine {
	cfg := DefaultConfig()
	cfg.Model.Seed = 42
	cfg.Codebook.Seed = 42
	return New(cfg)
}

func clickOn(selector string) event.TypedEvent {
	return event.TypedEvent{
		Timestamp: 1700000000000,
		Type:      "user_action.click",
		Context:   event.Context{TabID: "tab-1"},
		Payload:   event.Payload{TargetSelector: selector},
	}
}

func clickStream(selectors ...string) []event.TypedEvent {
	events := make([]event.TypedEvent, len(selectors))
	for i, sel := range selectors {
		events[i] = clickOn(sel)
	}
	return events
}

// fakeModel lets tests control training duration and observe call counts.
type fakeModel struct {
	mu      sync.Mutex
	calls   int
	release chan struct{} // when non-nil, Train blocks until closed
}

func (f *fakeModel) Predict(window []int) []int { return nil }

func (f *fakeModel) Train(inputs [][]int, targets []int) (seqmodel.TrainSummary, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return seqmodel.TrainSummary{Samples: len(inputs), Epochs: 1}, nil
}

func (f *fakeModel) State() seqmodel.State { return seqmodel.StateReady }
func (f *fakeModel) Reset()                {}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForIdle(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.TrainingInFlight() {
		if time.Now().After(deadline) {
			t.Fatal("training never drained")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// #endregion helpers

// #region train-tests

func TestTrainEmptyBatch(t *testing.T) {
	e := testEngine()
	res := e.Train(nil)
	if res.Status != "insufficient_data" {
		t.Fatalf("expected insufficient_data, got %s", res.Status)
	}
	if res.EventsProcessed != 0 {
		t.Fatalf("expected 0 events processed, got %d", res.EventsProcessed)
	}
}

func TestTrainBuildsVocabularyAndTransitions(t *testing.T) {
	e := testEngine()
	res := e.Train(clickStream("#a", "#b", "#c"))

	if res.Status != "trained" {
		t.Fatalf("expected trained, got %s", res.Status)
	}
	if res.VocabularySize != 3 {
		t.Fatalf("expected vocabulary 3, got %d", res.VocabularySize)
	}
	if res.TransitionMappings != 2 {
		t.Fatalf("expected 2 transitions, got %d", res.TransitionMappings)
	}
	waitForIdle(t, e)
}

func TestTrainDiscoversRepeatedTasks(t *testing.T) {
	e := testEngine()
	res := e.Train(clickStream(
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
	))

	if res.DiscoveredTasks == 0 {
		t.Fatal("repeated sequence should discover tasks")
	}
	if res.SequencePatterns == 0 {
		t.Fatal("expected mined patterns")
	}

	skills := e.Skills()
	if len(skills) != res.DiscoveredTasks {
		t.Fatalf("skills length %d disagrees with result %d", len(skills), res.DiscoveredTasks)
	}
	for _, s := range skills {
		if !s.IsTaskSequence {
			t.Fatalf("skill %s not flagged as task sequence", s.ID)
		}
		if len(s.TokenSequence) != len(s.Steps) {
			t.Fatalf("skill %s token sequence not resolved", s.ID)
		}
	}
	waitForIdle(t, e)
}

func TestTrainBuildsCodebookAtThreshold(t *testing.T) {
	e := testEngine()
	e.Train(clickStream("#a", "#b", "#c", "#d", "#e", "#f", "#g", "#h", "#i", "#j"))

	if len(e.Codebook()) == 0 {
		t.Fatal("10 events should trigger a codebook build")
	}
	waitForIdle(t, e)
}

func TestTrainCoalescesNeuralRuns(t *testing.T) {
	fake := &fakeModel{release: make(chan struct{})}
	cfg := DefaultConfig()
	e := NewWithModel(cfg, func() seqmodel.SequenceModel { return fake })

	batch := clickStream("#a", "#b", "#c", "#d", "#e", "#f", "#g")

	first := e.Train(batch)
	if first.NeuralTraining != "started" {
		t.Fatalf("expected started, got %q", first.NeuralTraining)
	}

	// Several requests while the first run blocks all collapse into one rerun.
	for i := 0; i < 3; i++ {
		res := e.Train(batch)
		if res.NeuralTraining != "coalesced" {
			t.Fatalf("expected coalesced, got %q", res.NeuralTraining)
		}
	}

	close(fake.release)
	waitForIdle(t, e)

	if got := fake.callCount(); got != 2 {
		t.Fatalf("expected exactly 2 training runs (initial + one deferred), got %d", got)
	}
}

// #endregion train-tests

// #region predict-tests

func TestPredictEmptyInput(t *testing.T) {
	e := testEngine()
	res := e.Predict(nil)

	if res.Reason != ReasonNoInput {
		t.Fatalf("expected %s, got %s", ReasonNoInput, res.Reason)
	}
	if !res.IsDifficult || res.Confidence != 0 {
		t.Fatalf("empty predict should be difficult at confidence 0: %+v", res)
	}
}

func TestPredictNoSelectors(t *testing.T) {
	e := testEngine()
	res := e.Predict([]event.TypedEvent{{Type: "page.scroll"}})

	if res.Reason != ReasonInsufficientContext {
		t.Fatalf("expected %s, got %s", ReasonInsufficientContext, res.Reason)
	}
	if !res.IsDifficult {
		t.Fatal("selector-free input should be difficult")
	}
}

func TestPredictTaskGuidance(t *testing.T) {
	e := testEngine()
	e.Train(clickStream(
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
	))
	waitForIdle(t, e)

	res := e.Predict(clickStream("#a", "#b", "#c"))
	if res.TaskGuidance == nil {
		t.Fatalf("expected task guidance, got %+v", res)
	}
	if res.TaskGuidance.NextStep.Selector != "#d" {
		t.Fatalf("expected next step #d, got %s", res.TaskGuidance.NextStep.Selector)
	}
	if res.Confidence != 0.8 {
		t.Fatalf("expected guidance confidence 0.8, got %f", res.Confidence)
	}
	if res.IsDifficult {
		t.Fatal("guided prediction must not be difficult")
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Source != "task_guidance" {
		t.Fatalf("expected single task_guidance suggestion, got %+v", res.Suggestions)
	}
	if res.TaskGuidance.Progress != 3 {
		t.Fatalf("expected progress 3, got %d", res.TaskGuidance.Progress)
	}
}

func TestPredictTaskGuidanceTwoStepPrefix(t *testing.T) {
	e := testEngine()
	e.Train(clickStream(
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
	))
	waitForIdle(t, e)

	// Two completed steps are enough to pick the task back up.
	res := e.Predict(clickStream("#a", "#b"))
	if res.TaskGuidance == nil {
		t.Fatalf("expected task guidance for a two-step prefix, got %+v", res)
	}
	if res.TaskGuidance.NextStep.Selector != "#c" {
		t.Fatalf("expected next step #c, got %s", res.TaskGuidance.NextStep.Selector)
	}
	if res.Confidence != 0.8 {
		t.Fatalf("expected guidance confidence 0.8, got %f", res.Confidence)
	}
	if res.TaskGuidance.Progress != 2 {
		t.Fatalf("expected progress 2, got %d", res.TaskGuidance.Progress)
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Source != "task_guidance" {
		t.Fatalf("expected single task_guidance suggestion, got %+v", res.Suggestions)
	}
}

func TestPredictFrequencyFallback(t *testing.T) {
	e := testEngine()
	a := e.vocabulary.ToIndex("#a")
	b := e.vocabulary.ToIndex("#b")
	e.transitions.Boost(a, b, 5)

	res := e.Predict(clickStream("#a"))
	if len(res.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %+v", res.Suggestions)
	}
	s := res.Suggestions[0]
	if s.Selector != "#b" || s.Source != "frequency" {
		t.Fatalf("expected frequency suggestion #b, got %+v", s)
	}
	if s.Confidence != 0.95 {
		t.Fatalf("rank-0 suggestion should score 0.95, got %f", s.Confidence)
	}
	// One candidate, no neural participation: 0.3 + 0.1.
	if res.Confidence < 0.39 || res.Confidence > 0.41 {
		t.Fatalf("expected merged confidence 0.4, got %f", res.Confidence)
	}
	if res.IsDifficult {
		t.Fatal("0.4 confidence is above the difficulty threshold")
	}
}

func TestPredictUnknownSelectorIsLowConfidence(t *testing.T) {
	e := testEngine()
	res := e.Predict(clickStream("#never-seen"))

	if res.Reason != ReasonLowConfidence {
		t.Fatalf("expected %s, got %s", ReasonLowConfidence, res.Reason)
	}
	if !res.IsDifficult || res.Confidence != 0.1 {
		t.Fatalf("expected difficult at 0.1, got %+v", res)
	}
}

func TestPredictRecordsDifficultyHistory(t *testing.T) {
	e := testEngine()
	e.Predict(clickStream("#x"))
	e.Predict(clickStream("#x"))

	patterns := e.DifficultPatterns()
	if len(patterns) != 1 {
		t.Fatalf("expected 1 repeated pattern, got %d", len(patterns))
	}
	if patterns[0].Count != 2 {
		t.Fatalf("expected count 2, got %d", patterns[0].Count)
	}

	sequences := e.DifficultSequences(0)
	if len(sequences) != 2 {
		t.Fatalf("expected 2 difficult sequences, got %d", len(sequences))
	}
}

// #endregion predict-tests

// #region reset-tests

func TestResetModelClearsEverything(t *testing.T) {
	e := testEngine()
	e.Train(clickStream(
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
	))
	waitForIdle(t, e)

	e.ResetModel()
	if e.VocabularySize() != 0 {
		t.Fatalf("expected empty vocabulary, got %d", e.VocabularySize())
	}
	if e.TransitionMappings() != 0 {
		t.Fatalf("expected no transitions, got %d", e.TransitionMappings())
	}
	if e.PatternCount() != 0 {
		t.Fatalf("expected no patterns, got %d", e.PatternCount())
	}
	if len(e.Skills()) != 0 {
		t.Fatal("expected no skills")
	}
	if e.model.State() != seqmodel.StateUntrained {
		t.Fatalf("expected fresh untrained model, got %s", e.model.State())
	}
}

func TestResetDifficultyTrackingPreservesSkills(t *testing.T) {
	e := testEngine()
	e.Train(clickStream(
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
		"#a", "#b", "#c", "#d",
	))
	waitForIdle(t, e)
	e.Predict(clickStream("#never-seen"))
	e.Predict(clickStream("#never-seen"))

	skillsBefore := len(e.Skills())
	if skillsBefore == 0 {
		t.Fatal("setup should have discovered skills")
	}

	e.ResetDifficultyTracking()
	if len(e.DifficultPatterns()) != 0 || len(e.DifficultSequences(0)) != 0 {
		t.Fatal("difficulty state should be cleared")
	}
	if len(e.Skills()) != skillsBefore {
		t.Fatal("difficulty reset must not touch discovered skills")
	}
	if e.VocabularySize() == 0 {
		t.Fatal("difficulty reset must not touch the vocabulary")
	}
}

// #endregion reset-tests

// #region info-tests

func TestGetInfo(t *testing.T) {
	e := testEngine()
	info := e.GetInfo()

	if info.Status != "ready" {
		t.Fatalf("expected ready, got %s", info.Status)
	}
	if info.Version != Version {
		t.Fatalf("expected version %s, got %s", Version, info.Version)
	}
	if info.FeaturesCount != 20 {
		t.Fatalf("expected 20 features, got %d", info.FeaturesCount)
	}
	if len(info.Capabilities) == 0 {
		t.Fatal("expected capability list")
	}
}

func TestProcessEventsVectorizesWithoutLearning(t *testing.T) {
	e := testEngine()
	vecs := e.ProcessEvents(clickStream("#a", "#b"))

	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if e.VocabularySize() != 0 {
		t.Fatal("processEvents must not learn")
	}
}

// #endregion info-tests
