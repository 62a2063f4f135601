package engine

// #region imports
import (
	"log"

	"github.com/danielpatrickdp/synapse/internal/event"
	"github.com/danielpatrickdp/synapse/internal/task"
)

// #endregion

// #region result-types

// Reason codes for degraded predictions.
const (
	ReasonNoInput             = "no_input_sequence"
	ReasonInsufficientContext = "insufficient_context"
	ReasonLowConfidence       = "low_confidence"
	ReasonPredictionError     = "prediction_error"
)

// Suggestion is one ranked next-target candidate.
type Suggestion struct {
	Selector   string  `json:"selector"`
	Action     string  `json:"action,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // "task_guidance" | "neural" | "frequency"
}

// TaskGuidance describes an in-progress task and its next step.
type TaskGuidance struct {
	TaskID     string    `json:"taskId"`
	TaskName   string    `json:"taskName"`
	NextStep   task.Step `json:"nextStep"`
	Progress   int       `json:"progress"`
	TotalSteps int       `json:"totalSteps"`
}

// PredictResult is the full predict payload.
type PredictResult struct {
	Suggestions  []Suggestion  `json:"suggestions"`
	Confidence   float64       `json:"confidence"`
	IsDifficult  bool          `json:"isDifficult"`
	TaskGuidance *TaskGuidance `json:"taskGuidance,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// #endregion result-types

// #region predict

// Predict runs the full prediction cascade over a trailing event window:
// task guidance first, then the union of neural and frequency candidates.
// Every outcome, including failures, is recorded in the difficulty tracker,
// and no error ever propagates to the caller.
func (e *Engine) Predict(events []event.TypedEvent) (res PredictResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ENGINE] predict failed: %v", r)
			e.tracker.Record(0, event.TypeSignature(events, signatureLength), nil)
			res = PredictResult{Reason: ReasonPredictionError, IsDifficult: true}
		}
	}()

	if len(events) == 0 {
		e.tracker.Record(0, "", nil)
		return PredictResult{Reason: ReasonNoInput, IsDifficult: true}
	}

	signature := event.TypeSignature(events, signatureLength)
	selectors := event.TrailingSelectors(events, e.config.TrailingWindow)
	if len(selectors) == 0 {
		e.tracker.Record(0, signature, nil)
		return PredictResult{Reason: ReasonInsufficientContext, IsDifficult: true}
	}

	simplified := make([]string, len(selectors))
	for i, sel := range selectors {
		simplified[i] = event.SimplifyTarget(sel)
	}

	// 1. Task guidance: a matched in-progress task wins outright.
	if m := e.matcher.MatchPrefix(simplified); m != nil {
		conf := e.config.GuidanceConfidence
		difficult := e.tracker.Record(conf, signature, simplified)
		return PredictResult{
			Suggestions: []Suggestion{{
				Selector:   m.NextStep.Selector,
				Action:     m.NextStep.Action,
				Confidence: conf,
				Source:     "task_guidance",
			}},
			Confidence:  conf,
			IsDifficult: difficult,
			TaskGuidance: &TaskGuidance{
				TaskID:     m.Task.ID,
				TaskName:   m.Task.Name,
				NextStep:   m.NextStep,
				Progress:   m.Progress,
				TotalSteps: len(m.Task.Steps),
			},
		}
	}

	// 2. Neural ∪ frequency candidates, neural first, duplicates removed.
	ids := make([]int, len(selectors))
	for i, sel := range selectors {
		if id, ok := e.vocabulary.Lookup(sel); ok {
			ids[i] = id
		}
	}

	var neural []int
	if len(ids) >= e.config.Model.SequenceLength {
		neural = e.model.Predict(ids)
	}
	freq := e.transitions.Predict(ids[len(ids)-1], e.config.TopK)
	merged := mergeCandidates(neural, freq)

	if len(merged) == 0 {
		conf := 0.1
		e.tracker.Record(conf, signature, simplified)
		return PredictResult{Confidence: conf, IsDifficult: true, Reason: ReasonLowConfidence}
	}

	conf := mergedConfidence(len(merged), len(neural) > 0)
	difficult := e.tracker.Record(conf, signature, simplified)

	neuralSet := make(map[int]struct{}, len(neural))
	for _, id := range neural {
		neuralSet[id] = struct{}{}
	}

	suggestions := make([]Suggestion, 0, len(merged))
	for rank, id := range merged {
		sel, ok := e.vocabulary.ToSelector(id)
		if !ok {
			continue
		}
		source := "frequency"
		if _, fromNeural := neuralSet[id]; fromNeural {
			source = "neural"
		}
		suggestions = append(suggestions, Suggestion{
			Selector:   sel,
			Confidence: rankConfidence(rank),
			Source:     source,
		})
	}

	return PredictResult{
		Suggestions: suggestions,
		Confidence:  conf,
		IsDifficult: difficult,
	}
}

// #endregion predict

// #region helpers

func mergeCandidates(neural, freq []int) []int {
	var merged []int
	seen := make(map[int]struct{})
	for _, list := range [][]int{neural, freq} {
		for _, id := range list {
			if id == 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}

// mergedConfidence is the ad hoc confidence heuristic for the merged path:
// richer candidate lists and neural participation score higher, capped below
// 1.0. It is not a calibrated probability.
func mergedConfidence(candidates int, neural bool) float64 {
	if candidates > 5 {
		candidates = 5
	}
	conf := 0.3 + 0.1*float64(candidates)
	if neural {
		conf += 0.15
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// rankConfidence decays per rank from near 1.0.
func rankConfidence(rank int) float64 {
	conf := 0.95 - 0.1*float64(rank)
	if conf < 0.1 {
		conf = 0.1
	}
	return conf
}

// #endregion helpers
