package engine

// #region imports
import (
	"log"
	"sync"

	"github.com/danielpatrickdp/synapse/internal/codebook"
	"github.com/danielpatrickdp/synapse/internal/difficulty"
	"github.com/danielpatrickdp/synapse/internal/event"
	"github.com/danielpatrickdp/synapse/internal/features"
	"github.com/danielpatrickdp/synapse/internal/markov"
	"github.com/danielpatrickdp/synapse/internal/miner"
	"github.com/danielpatrickdp/synapse/internal/seqmodel"
	"github.com/danielpatrickdp/synapse/internal/task"
	"github.com/danielpatrickdp/synapse/internal/vocab"
)

// #endregion

// #region engine-struct

// Engine owns all learned state: the vocabulary, transition table, codebook,
// sequence model, pattern miner, task matcher, and difficulty tracker. It is
// designed to be driven by a single command dispatcher; only the training
// in-flight bookkeeping is shared with a background goroutine and guarded.
type Engine struct {
	config Config

	vocabulary  *vocab.Vocabulary
	transitions *markov.Model
	codebook    *codebook.Builder
	model       seqmodel.SequenceModel
	patterns    *miner.Miner
	matcher     *task.Matcher
	tracker     *difficulty.Tracker

	modelFactory func() seqmodel.SequenceModel

	trainMu          sync.Mutex
	trainingInFlight bool
	rerunPending     bool
	pendingInputs    [][]int
	pendingTargets   []int
}

// New creates an engine with a fresh GRU sequence model.
func New(config Config) *Engine {
	return NewWithModel(config, func() seqmodel.SequenceModel {
		return seqmodel.NewGRU(config.Model)
	})
}

// NewWithModel creates an engine with an injected sequence model factory.
// Any implementation of seqmodel.SequenceModel can be substituted.
func NewWithModel(config Config, factory func() seqmodel.SequenceModel) *Engine {
	return &Engine{
		config:       config,
		vocabulary:   vocab.New(config.Vocab),
		transitions:  markov.New(),
		codebook:     codebook.New(config.Codebook),
		model:        factory(),
		patterns:     miner.New(config.Miner),
		matcher:      task.NewMatcher(config.TaskMatchMinLength),
		tracker:      difficulty.New(config.Difficulty),
		modelFactory: factory,
	}
}

// #endregion engine-struct

// #region train

// TrainResult summarizes one training batch.
type TrainResult struct {
	Status             string `json:"status"`
	EventsProcessed    int    `json:"eventsProcessed"`
	CodebookSize       int    `json:"codebookSize"`
	VocabularySize     int    `json:"vocabularySize"`
	TransitionMappings int    `json:"transitionMappings"`
	DiscoveredTasks    int    `json:"discoveredTasks"`
	SequencePatterns   int    `json:"sequencePatterns"`
	NeuralTraining     string `json:"neuralTraining,omitempty"` // "started" | "coalesced"
}

// Train feeds a batch of events through every learner: the codebook builder,
// the vocabulary and transition table, the pattern miners, and, when enough
// windows exist, the sequence model. Neural training runs in the background;
// a request arriving while one is in flight is coalesced into at most one
// deferred re-run.
func (e *Engine) Train(events []event.TypedEvent) TrainResult {
	res := TrainResult{Status: "trained", EventsProcessed: len(events)}
	if len(events) == 0 {
		res.Status = "insufficient_data"
		e.fillCounts(&res)
		return res
	}

	e.codebook.Add(features.VectorizeAll(events)...)
	if e.codebook.Ready() {
		e.codebook.Build()
		log.Printf("[ENGINE] codebook rebuilt: %d centroids from %d vectors",
			e.codebook.Size(), e.codebook.Count())
	}

	ids, steps, ctxSteps := e.ingest(events)
	e.transitions.Observe(ids)
	e.patterns.Mine(steps)
	e.patterns.MineCrossContext(ctxSteps)
	for _, t := range e.patterns.Promote(e.vocabulary.ToIndex) {
		e.matcher.Upsert(t)
	}

	l := e.config.Model.SequenceLength
	var inputs [][]int
	var targets []int
	for i := 0; i+l < len(ids); i++ {
		w := make([]int, l)
		copy(w, ids[i:i+l])
		inputs = append(inputs, w)
		targets = append(targets, ids[i+l])
	}
	if len(inputs) > 0 {
		res.NeuralTraining = e.scheduleTraining(inputs, targets)
	}

	e.fillCounts(&res)
	return res
}

// ingest registers selectors in the vocabulary and builds the parallel
// miner step streams.
func (e *Engine) ingest(events []event.TypedEvent) ([]int, []miner.Step, []miner.ContextStep) {
	var ids []int
	var steps []miner.Step
	var ctxSteps []miner.ContextStep
	for _, ev := range events {
		sel := ev.Payload.TargetSelector
		if sel == "" {
			continue
		}
		ids = append(ids, e.vocabulary.ToIndex(sel))
		step := miner.Step{
			Selector: event.SimplifyTarget(sel),
			Action:   ev.Type,
		}
		steps = append(steps, step)
		ctxSteps = append(ctxSteps, miner.ContextStep{
			Step:      step,
			ContextID: ev.Context.TabID,
		})
	}
	return ids, steps, ctxSteps
}

func (e *Engine) fillCounts(res *TrainResult) {
	res.CodebookSize = e.codebook.Size()
	res.VocabularySize = e.vocabulary.Size()
	res.TransitionMappings = e.transitions.Mappings()
	res.DiscoveredTasks = e.matcher.Len()
	res.SequencePatterns = e.patterns.Count()
}

// #endregion train

// #region train-coalescing

// scheduleTraining starts a background training run, or, when one is already
// in flight, arms the single rerun flag so any number of rapid requests
// collapse into one deferred re-run.
func (e *Engine) scheduleTraining(inputs [][]int, targets []int) string {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	if e.trainingInFlight {
		e.rerunPending = true
		e.pendingInputs = inputs
		e.pendingTargets = targets
		return "coalesced"
	}
	e.trainingInFlight = true
	go e.runTraining(e.model, inputs, targets)
	return "started"
}

func (e *Engine) runTraining(model seqmodel.SequenceModel, inputs [][]int, targets []int) {
	summary, err := model.Train(inputs, targets)
	if err != nil {
		log.Printf("[ENGINE] neural training failed: %v", err)
	} else {
		log.Printf("[ENGINE] neural training done: samples=%d epochs=%d loss=%.4f",
			summary.Samples, summary.Epochs, summary.Loss)
	}

	e.trainMu.Lock()
	rerun := e.rerunPending
	in, tg := e.pendingInputs, e.pendingTargets
	e.rerunPending = false
	e.pendingInputs, e.pendingTargets = nil, nil
	e.trainingInFlight = rerun
	e.trainMu.Unlock()

	if rerun {
		// Deferred re-run on the next scheduler tick, after the current run
		// has fully completed.
		go e.runTraining(model, in, tg)
	}
}

// TrainingInFlight reports whether a background neural run is active or
// pending.
func (e *Engine) TrainingInFlight() bool {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	return e.trainingInFlight
}

// #endregion train-coalescing

// #region accessors

// ProcessEvents vectorizes a batch of events without training on them.
func (e *Engine) ProcessEvents(events []event.TypedEvent) [][]float64 {
	return features.VectorizeAll(events)
}

// Skills returns every discovered task in discovery order.
func (e *Engine) Skills() []task.Task {
	return e.matcher.Tasks()
}

// Codebook returns the diagnostic centroids from the last build.
func (e *Engine) Codebook() [][]float64 {
	return e.codebook.Centroids()
}

// VocabularySize returns the number of assigned vocabulary entries.
func (e *Engine) VocabularySize() int {
	return e.vocabulary.Size()
}

// TransitionMappings returns the number of distinct transition edges.
func (e *Engine) TransitionMappings() int {
	return e.transitions.Mappings()
}

// PatternCount returns the number of distinct mined patterns.
func (e *Engine) PatternCount() int {
	return e.patterns.Count()
}

// Info reports engine status and capabilities.
type Info struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	CodebookSize  int      `json:"codebookSize"`
	FeaturesCount int      `json:"featuresCount"`
	Capabilities  []string `json:"capabilities"`
}

// GetInfo returns the getInfo payload.
func (e *Engine) GetInfo() Info {
	status := "ready"
	if e.TrainingInFlight() {
		status = "training"
	}
	return Info{
		Status:        status,
		Version:       Version,
		CodebookSize:  e.codebook.Size(),
		FeaturesCount: features.VectorSize,
		Capabilities: []string{
			"predict",
			"train",
			"task_discovery",
			"cross_context_mining",
			"few_shot_learning",
			"difficulty_tracking",
		},
	}
}

// #endregion accessors

// #region resets

// ResetModel clears all learned state: vocabulary, transitions, codebook,
// patterns, tasks, difficulty bookkeeping, and the sequence model.
func (e *Engine) ResetModel() {
	e.vocabulary.Reset()
	e.transitions.Reset()
	e.codebook.Reset()
	e.patterns.Reset()
	e.matcher.Reset()
	e.tracker.Reset()
	e.model = e.modelFactory()
	log.Printf("[ENGINE] model reset")
}

// ResetDifficultyTracking clears prediction history and difficulty counters
// without touching vocabulary, transitions, or tasks.
func (e *Engine) ResetDifficultyTracking() {
	e.tracker.Reset()
}

// DifficultSequences returns recent low-confidence history entries.
func (e *Engine) DifficultSequences(limit int) []difficulty.HistoryEntry {
	if limit <= 0 {
		limit = 10
	}
	return e.tracker.DifficultSequences(limit)
}

// DifficultPatterns returns the repeatedly-difficult signature counters.
func (e *Engine) DifficultPatterns() []difficulty.PatternCount {
	return e.tracker.DifficultPatterns()
}

// #endregion resets
