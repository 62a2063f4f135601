package task

// #region types

// Step is one action inside a discovered task.
type Step struct {
	Selector   string  `json:"selector"`
	Action     string  `json:"action"`
	StepNumber int     `json:"stepNumber"`
	Confidence float64 `json:"confidence"`
}

// Task is a recurring ordered action sequence promoted from the pattern
// miner. Once discovered, a task is only ever overwritten (re-promotion
// recomputes confidence from frequency) or cleared by a full model reset.
type Task struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	TokenSequence     []int   `json:"tokenSequence"`
	Frequency         int     `json:"frequency"`
	Confidence        float64 `json:"confidence"`
	SequenceLength    int     `json:"sequenceLength"`
	Steps             []Step  `json:"steps"`
	IsTaskSequence    bool    `json:"isTaskSequence"`
	CrossContextCount int     `json:"crossContextCount,omitempty"`
}

// #endregion types
