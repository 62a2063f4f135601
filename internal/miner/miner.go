package miner

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/danielpatrickdp/synapse/internal/task"
)

// #region config

// switchMarker annotates positions in a cross-context pattern key where the
// window changes context. It keeps plain and cross-context patterns from
// ever colliding in the pattern map.
const switchMarker = "⇄"

// maxStepConfidence caps per-step confidence during promotion.
const maxStepConfidence = 0.9

// Config bounds the sliding-window pattern miner.
type Config struct {
	MinLength        int // shortest window mined
	MaxLength        int // longest window mined
	MinTaskFrequency int // occurrences before a pattern is promoted to a task
}

// DefaultConfig returns the standard mining bounds.
func DefaultConfig() Config {
	return Config{
		MinLength:        3,
		MaxLength:        10,
		MinTaskFrequency: 2,
	}
}

// #endregion config

// #region types

// Step is one (action, simplified target) pair in a mined sequence.
type Step struct {
	Selector string
	Action   string
}

// ContextStep is a Step tagged with the browsing context it occurred in.
type ContextStep struct {
	Step
	ContextID string
}

// #endregion types

// #region miner

// Miner counts frequent subsequences over trailing event windows and
// promotes sufficiently frequent ones into tasks. Counts grow monotonically
// per batch and are only cleared by Reset.
type Miner struct {
	config   Config
	order    []string // keys in discovery order
	counts   map[string]int
	steps    map[string][]Step
	switches map[string]int
}

// New creates an empty miner.
func New(config Config) *Miner {
	return &Miner{
		config:   config,
		counts:   make(map[string]int),
		steps:    make(map[string][]Step),
		switches: make(map[string]int),
	}
}

// #endregion miner

// #region mine

// Mine slides windows of every length between MinLength and MaxLength over
// steps and increments each window's pattern count.
func (m *Miner) Mine(steps []Step) {
	for length := m.config.MinLength; length <= m.config.MaxLength; length++ {
		for start := 0; start+length <= len(steps); start++ {
			window := steps[start : start+length]
			m.record(plainKey(window), window, 0)
		}
	}
}

// MineCrossContext is the cross-context variant: windows must reference at
// least two distinct context identifiers, and the canonical key carries
// explicit switch markers at the positions where the context changes.
func (m *Miner) MineCrossContext(steps []ContextStep) {
	for length := m.config.MinLength; length <= m.config.MaxLength; length++ {
		for start := 0; start+length <= len(steps); start++ {
			window := steps[start : start+length]
			key, switches, contexts := crossContextKey(window)
			if contexts < 2 {
				continue
			}
			plain := make([]Step, len(window))
			for i, cs := range window {
				plain[i] = cs.Step
			}
			m.record(key, plain, switches)
		}
	}
}

func (m *Miner) record(key string, window []Step, switches int) {
	if _, seen := m.counts[key]; !seen {
		m.order = append(m.order, key)
		stored := make([]Step, len(window))
		copy(stored, window)
		m.steps[key] = stored
		m.switches[key] = switches
	}
	m.counts[key]++
}

// #endregion mine

// #region promote

// Promote converts every pattern at or above MinTaskFrequency into a task,
// in discovery order. Task ids derive from the pattern key, so re-promotion
// overwrites rather than duplicates; confidence is recomputed from the
// current frequency.
func (m *Miner) Promote(resolve func(selector string) int) []task.Task {
	var tasks []task.Task
	for _, key := range m.order {
		count := m.counts[key]
		if count < m.config.MinTaskFrequency {
			continue
		}
		tasks = append(tasks, m.buildTask(key, count, resolve))
	}
	return tasks
}

func (m *Miner) buildTask(key string, count int, resolve func(string) int) task.Task {
	steps := m.steps[key]
	confidence := float64(count) / 10
	if confidence > maxStepConfidence {
		confidence = maxStepConfidence
	}

	id := hashKey(key)
	t := task.Task{
		ID:                id,
		Name:              "workflow-" + id[:8],
		Frequency:         count,
		Confidence:        confidence,
		SequenceLength:    len(steps),
		IsTaskSequence:    true,
		CrossContextCount: m.switches[key],
	}
	if m.switches[key] > 0 {
		t.Description = fmt.Sprintf("%d-step cross-context sequence seen %d times", len(steps), count)
	} else {
		t.Description = fmt.Sprintf("%d-step sequence seen %d times", len(steps), count)
	}
	for i, s := range steps {
		t.Steps = append(t.Steps, task.Step{
			Selector:   s.Selector,
			Action:     s.Action,
			StepNumber: i,
			Confidence: confidence,
		})
		if resolve != nil {
			t.TokenSequence = append(t.TokenSequence, resolve(s.Selector))
		}
	}
	return t
}

// #endregion promote

// #region accessors

// Patterns returns a copy of the pattern counts.
func (m *Miner) Patterns() map[string]int {
	out := make(map[string]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// Count returns the number of distinct patterns.
func (m *Miner) Count() int {
	return len(m.counts)
}

// CountFor returns the occurrence count of one canonical key.
func (m *Miner) CountFor(key string) int {
	return m.counts[key]
}

// Reset discards all patterns.
func (m *Miner) Reset() {
	m.order = nil
	m.counts = make(map[string]int)
	m.steps = make(map[string][]Step)
	m.switches = make(map[string]int)
}

// #endregion accessors

// #region keys

// plainKey canonicalizes a window as ordered action|selector pairs.
func plainKey(window []Step) string {
	parts := make([]string, len(window))
	for i, s := range window {
		parts[i] = s.Action + "|" + s.Selector
	}
	return strings.Join(parts, ";")
}

// crossContextKey canonicalizes a context-tagged window, inserting a switch
// marker before each step whose context differs from its predecessor.
// Returns the key, the switch count, and the number of distinct contexts.
func crossContextKey(window []ContextStep) (string, int, int) {
	parts := make([]string, 0, len(window)*2)
	contexts := make(map[string]struct{})
	switches := 0
	for i, cs := range window {
		contexts[cs.ContextID] = struct{}{}
		if i > 0 && cs.ContextID != window[i-1].ContextID {
			parts = append(parts, switchMarker)
			switches++
		}
		parts = append(parts, cs.Action+"|"+cs.Selector)
	}
	return strings.Join(parts, ";"), switches, len(contexts)
}

func hashKey(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return fmt.Sprintf("%016x", h.Sum64())
}

// #endregion keys
