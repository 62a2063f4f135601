package engine

// #region imports
import (
	"log"
)

// #endregion

// #region types

// Insight is one result from the external heavy-analysis path: a difficult
// pattern signature, the inferred user intent, and the analyzer's confidence.
type Insight struct {
	Pattern    string  `json:"pattern"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// SyntheticSample is an externally supplied training example: an ordered
// target sequence with a confidence grade.
type SyntheticSample struct {
	Selectors  []string `json:"selectors"`
	Intent     string   `json:"intent,omitempty"`
	Confidence float64  `json:"confidence"`
}

// FewShotResult summarizes a few-shot learning pass.
type FewShotResult struct {
	Status           string `json:"status"`
	ProcessedSamples int    `json:"processedSamples"`
	WeightUpdates    int    `json:"weightUpdates"`
}

// SyntheticResult summarizes synthetic training data processing.
type SyntheticResult struct {
	Status           string `json:"status"`
	ProcessedSamples int    `json:"processedSamples"`
	TotalSamples     int    `json:"totalSamples"`
	FewShotSamples   int    `json:"fewShotSamples"`
	RegularSamples   int    `json:"regularSamples"`
}

// #endregion types

// #region insights

// ApplyInsights marks difficult patterns as resolved for every insight above
// the confidence gate. It never alters the transition table by itself.
// Returns the number of resolved patterns.
func (e *Engine) ApplyInsights(insights []Insight) int {
	resolved := 0
	for _, ins := range insights {
		if ins.Confidence < e.config.InsightGate {
			continue
		}
		if e.tracker.Resolve(ins.Pattern) {
			resolved++
			log.Printf("[ENGINE] insight resolved pattern %q (intent: %s)", ins.Pattern, ins.Intent)
		}
	}
	return resolved
}

// #endregion insights

// #region few-shot

// FewShotLearning walks each sufficiently confident sample's target sequence
// and boosts the corresponding transition edges by
// confidence * learningRate * scale, registering new selectors in the
// vocabulary as it goes. This bypasses neural retraining entirely.
func (e *Engine) FewShotLearning(samples []SyntheticSample, learningRate float64) FewShotResult {
	if learningRate <= 0 {
		learningRate = e.config.FewShotLearningRate
	}

	res := FewShotResult{Status: "few_shot_complete"}
	for _, s := range samples {
		if s.Confidence < e.config.FewShotGate || len(s.Selectors) < 2 {
			continue
		}
		res.ProcessedSamples++
		res.WeightUpdates += e.boostSequence(s.Selectors, s.Confidence*learningRate*e.config.FewShotScale)
	}
	return res
}

// ProcessSyntheticTrainingData partitions samples by confidence: high
// confidence goes through the few-shot path, the rest receive a smaller
// fixed weighted update.
func (e *Engine) ProcessSyntheticTrainingData(samples []SyntheticSample) SyntheticResult {
	res := SyntheticResult{
		Status:       "synthetic_processed",
		TotalSamples: len(samples),
	}

	var fewShot []SyntheticSample
	for _, s := range samples {
		if s.Confidence >= e.config.FewShotGate {
			fewShot = append(fewShot, s)
			continue
		}
		if len(s.Selectors) < 2 {
			continue
		}
		e.boostSequence(s.Selectors, e.config.RegularBoost)
		res.RegularSamples++
	}

	fs := e.FewShotLearning(fewShot, e.config.FewShotLearningRate)
	res.FewShotSamples = fs.ProcessedSamples
	res.ProcessedSamples = res.RegularSamples + fs.ProcessedSamples
	return res
}

// boostSequence registers the sequence's selectors and boosts every
// consecutive edge by delta. Returns the number of updated edges.
func (e *Engine) boostSequence(selectors []string, delta float64) int {
	ids := make([]int, len(selectors))
	for i, sel := range selectors {
		ids[i] = e.vocabulary.ToIndex(sel)
	}
	updates := 0
	for i := 0; i+1 < len(ids); i++ {
		e.transitions.Boost(ids[i], ids[i+1], delta)
		updates++
	}
	return updates
}

// #endregion few-shot
