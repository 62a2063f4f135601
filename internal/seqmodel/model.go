package seqmodel

// #region state

// State is the lifecycle state of a sequence model.
type State string

const (
	StateUntrained State = "untrained"
	StateReady     State = "ready"
	StateTraining  State = "training"
)

// #endregion state

// #region interface

// TrainSummary reports the outcome of one training run.
type TrainSummary struct {
	Samples int     `json:"samples"`
	Epochs  int     `json:"epochs"`
	Loss    float64 `json:"loss"` // mean cross-entropy of the final epoch
}

// SequenceModel predicts the next vocabulary id from a trailing window of
// ids. Implementations are free to use any recurrent or probabilistic model;
// the engine only depends on this contract.
type SequenceModel interface {
	// Predict returns ranked candidate ids for the token following window.
	// Short histories are left-padded with 0. Returns nil when untrained or
	// on malformed input; it never panics out to the caller.
	Predict(window []int) []int

	// Train consumes sliding windows mapped to the immediately following id.
	// Only one Train may be in flight at a time.
	Train(inputs [][]int, targets []int) (TrainSummary, error)

	// State reports the current lifecycle state.
	State() State

	// Reset returns the model to StateUntrained with fresh weights.
	Reset()
}

// #endregion interface
