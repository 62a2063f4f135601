package worker

// #region imports
import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/synapse/internal/difficulty"
	"github.com/danielpatrickdp/synapse/internal/engine"
	"github.com/danielpatrickdp/synapse/internal/event"
	"github.com/danielpatrickdp/synapse/internal/task"
)

// #endregion

// #region envelope-types

// Command is an inbound request envelope.
type Command struct {
	Command       string          `json:"command"`
	Data          json.RawMessage `json:"data,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Result is the response envelope. Command is the request name suffixed with
// "Result".
type Result struct {
	Command       string `json:"command"`
	Success       bool   `json:"success"`
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Handler processes one command payload.
type Handler func(data json.RawMessage) (any, error)

// Engine is the command surface the worker drives. *engine.Engine satisfies
// it; tests substitute fakes.
type Engine interface {
	ProcessEvents(events []event.TypedEvent) [][]float64
	Train(events []event.TypedEvent) engine.TrainResult
	Predict(events []event.TypedEvent) engine.PredictResult
	Skills() []task.Task
	GetInfo() engine.Info
	DifficultSequences(limit int) []difficulty.HistoryEntry
	DifficultPatterns() []difficulty.PatternCount
	ApplyInsights(insights []engine.Insight) int
	ProcessSyntheticTrainingData(samples []engine.SyntheticSample) engine.SyntheticResult
	FewShotLearning(samples []engine.SyntheticSample, learningRate float64) engine.FewShotResult
	ResetModel()
	ResetDifficultyTracking()
}

// #endregion envelope-types

// #region handlers

func registerEngineHandlers(w *Worker, e Engine) {
	w.Register("processEvents", func(data json.RawMessage) (any, error) {
		events, err := DecodeEvents(data, "events")
		if err != nil {
			return nil, err
		}
		return e.ProcessEvents(events), nil
	})

	w.Register("train", func(data json.RawMessage) (any, error) {
		events, err := DecodeEvents(data, "sequence")
		if err != nil {
			return nil, err
		}
		return e.Train(events), nil
	})

	w.Register("predict", func(data json.RawMessage) (any, error) {
		events, err := DecodeEvents(data, "currentSequence")
		if err != nil {
			return nil, err
		}
		return e.Predict(events), nil
	})

	w.Register("getSkills", func(json.RawMessage) (any, error) {
		return e.Skills(), nil
	})

	w.Register("getInfo", func(json.RawMessage) (any, error) {
		return e.GetInfo(), nil
	})

	w.Register("getDifficultSequences", func(data json.RawMessage) (any, error) {
		var params struct {
			Limit int `json:"limit"`
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &params); err != nil {
				return nil, fmt.Errorf("getDifficultSequences: %w", err)
			}
		}
		return e.DifficultSequences(params.Limit), nil
	})

	w.Register("getDifficultPatterns", func(json.RawMessage) (any, error) {
		return e.DifficultPatterns(), nil
	})

	w.Register("applyLLMInsights", func(data json.RawMessage) (any, error) {
		var params struct {
			Insights []engine.Insight `json:"insights"`
		}
		if err := unmarshalParams(data, &params, &params.Insights); err != nil {
			return nil, fmt.Errorf("applyLLMInsights: %w", err)
		}
		resolved := e.ApplyInsights(params.Insights)
		return map[string]any{"applied": true, "resolved": resolved}, nil
	})

	w.Register("processSyntheticTrainingData", func(data json.RawMessage) (any, error) {
		var params struct {
			Samples []engine.SyntheticSample `json:"samples"`
		}
		if err := unmarshalParams(data, &params, &params.Samples); err != nil {
			return nil, fmt.Errorf("processSyntheticTrainingData: %w", err)
		}
		return e.ProcessSyntheticTrainingData(params.Samples), nil
	})

	w.Register("fewShotLearning", func(data json.RawMessage) (any, error) {
		var params struct {
			Samples      []engine.SyntheticSample `json:"samples"`
			LearningRate float64                  `json:"learningRate"`
		}
		if err := unmarshalParams(data, &params, &params.Samples); err != nil {
			return nil, fmt.Errorf("fewShotLearning: %w", err)
		}
		return e.FewShotLearning(params.Samples, params.LearningRate), nil
	})

	w.Register("resetModel", func(json.RawMessage) (any, error) {
		e.ResetModel()
		return map[string]string{"status": "reset"}, nil
	})

	w.Register("resetDifficultyTracking", func(json.RawMessage) (any, error) {
		e.ResetDifficultyTracking()
		return map[string]bool{"reset": true}, nil
	})
}

// #endregion handlers

// #region decode

// DecodeEvents accepts both the wrapped form {"<key>": [...]} and a bare
// event array.
func DecodeEvents(data json.RawMessage, key string) ([]event.TypedEvent, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err == nil {
		raw, ok := wrapper[key]
		if !ok {
			return nil, nil
		}
		var events []event.TypedEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return events, nil
	}
	var events []event.TypedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return events, nil
}

// unmarshalParams accepts both the wrapped object form and a bare array for
// list-valued payloads.
func unmarshalParams(data json.RawMessage, wrapped any, bareList any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, wrapped); err == nil {
		return nil
	}
	return json.Unmarshal(data, bareList)
}

// #endregion decode
