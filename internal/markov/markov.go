package markov

import (
	"sort"
)

// #region constants

// TopK is the number of candidates Predict returns.
const TopK = 3

// #endregion constants

// #region model

// Model is a first-order transition frequency table between vocabulary ids.
// It is the always-available fallback predictor and the target of few-shot
// boosts. Weights start as integer counts and only grow, except on Reset.
type Model struct {
	table map[int]map[int]float64
	edges int
}

// New creates an empty transition model.
func New() *Model {
	return &Model{table: make(map[int]map[int]float64)}
}

// #endregion model

// #region observe

// Observe increments the weight of every consecutive (a, b) pair in ids.
func (m *Model) Observe(ids []int) {
	for i := 0; i+1 < len(ids); i++ {
		m.Boost(ids[i], ids[i+1], 1)
	}
}

// Boost adds delta to the (from, to) edge, creating it if absent.
func (m *Model) Boost(from, to int, delta float64) {
	row, ok := m.table[from]
	if !ok {
		row = make(map[int]float64)
		m.table[from] = row
	}
	if _, seen := row[to]; !seen {
		m.edges++
	}
	row[to] += delta
}

// #endregion observe

// #region predict

// Predict returns up to k destination ids from lastID, ranked by descending
// weight. Ties break on ascending id so ranking is deterministic.
func (m *Model) Predict(lastID, k int) []int {
	row := m.table[lastID]
	if len(row) == 0 {
		return nil
	}
	candidates := make([]int, 0, len(row))
	for id := range row {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool {
		wi, wj := row[candidates[i]], row[candidates[j]]
		if wi != wj {
			return wi > wj
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Weight returns the current weight of the (from, to) edge.
func (m *Model) Weight(from, to int) float64 {
	return m.table[from][to]
}

// Mappings returns the total number of distinct edges.
func (m *Model) Mappings() int {
	return m.edges
}

// #endregion predict

// #region reset

// Reset discards all transition weights.
func (m *Model) Reset() {
	m.table = make(map[int]map[int]float64)
	m.edges = 0
}

// #endregion reset
