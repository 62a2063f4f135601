package difficulty

import (
	"encoding/json"
	"sort"
	"time"
)

// #region config

// Config bounds difficulty bookkeeping.
type Config struct {
	HistoryCapacity        int     // prediction history ring size
	LowConfidenceThreshold float64 // below this a prediction counts as difficult
	RepeatFloor            int     // occurrences before a pattern is reported as repeatedly difficult
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity:        100,
		LowConfidenceThreshold: 0.3,
		RepeatFloor:            2,
	}
}

// #endregion config

// #region types

// HistoryEntry is one recorded prediction outcome.
type HistoryEntry struct {
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Sequence   []string  `json:"sequence"` // bounded trailing window snapshot
}

// PatternCount is a repeatedly-difficult trailing-type signature. It
// marshals as a [key, count] pair on the wire.
type PatternCount struct {
	Pattern string
	Count   int
}

// MarshalJSON renders the pair as a two-element tuple.
func (p PatternCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Pattern, p.Count})
}

// UnmarshalJSON accepts the tuple form.
func (p *PatternCount) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &p.Pattern); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &p.Count)
}

// #endregion types

// #region tracker

// Tracker records prediction confidence in a fixed-capacity ring and counts
// how often each trailing-type signature comes up difficult. History and
// counters can be cleared independently of the learned model state.
type Tracker struct {
	config  Config
	history []HistoryEntry
	counts  map[string]int
}

// New creates an empty tracker.
func New(config Config) *Tracker {
	return &Tracker{
		config: config,
		counts: make(map[string]int),
	}
}

// #endregion tracker

// #region record

// Record appends a prediction outcome and reports whether it was difficult.
// Low-confidence outcomes with a non-empty signature also bump the
// signature's difficulty counter.
func (t *Tracker) Record(confidence float64, signature string, snapshot []string) bool {
	entry := HistoryEntry{
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
		Sequence:   snapshot,
	}
	t.history = append(t.history, entry)
	if len(t.history) > t.config.HistoryCapacity {
		t.history = t.history[len(t.history)-t.config.HistoryCapacity:]
	}

	if confidence >= t.config.LowConfidenceThreshold {
		return false
	}
	if signature != "" {
		t.counts[signature]++
	}
	return true
}

// #endregion record

// #region queries

// DifficultSequences returns the most recent low-confidence entries, newest
// first, bounded to limit.
func (t *Tracker) DifficultSequences(limit int) []HistoryEntry {
	var out []HistoryEntry
	for i := len(t.history) - 1; i >= 0 && len(out) < limit; i-- {
		if t.history[i].Confidence < t.config.LowConfidenceThreshold {
			out = append(out, t.history[i])
		}
	}
	return out
}

// DifficultPatterns returns signatures that were difficult repeatedly
// (occurrence ≥ RepeatFloor), highest count first.
func (t *Tracker) DifficultPatterns() []PatternCount {
	var out []PatternCount
	for pattern, count := range t.counts {
		if count >= t.config.RepeatFloor {
			out = append(out, PatternCount{Pattern: pattern, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

// HistoryLen returns the current ring occupancy.
func (t *Tracker) HistoryLen() int {
	return len(t.history)
}

// #endregion queries

// #region resolve

// Resolve marks a difficult pattern as handled by an external insight,
// removing its counter. Reports whether the pattern was being tracked.
func (t *Tracker) Resolve(signature string) bool {
	if _, ok := t.counts[signature]; !ok {
		return false
	}
	delete(t.counts, signature)
	return true
}

// Reset clears history and counters. Learned model state is untouched.
func (t *Tracker) Reset() {
	t.history = nil
	t.counts = make(map[string]int)
}

// #endregion resolve
