package seqmodel

import (
	"math"
	"sync"
)

// #region buffer-pool

// Scratch vectors for forward/training passes are pooled and must be
// returned on every exit path; nothing else reclaims them.
var vecPool = sync.Pool{New: func() any { return []float64(nil) }}

func getVec(n int) []float64 {
	v := vecPool.Get().([]float64)
	if cap(v) < n {
		v = make([]float64, n)
	}
	v = v[:n]
	zero(v)
	return v
}

func putVec(v []float64) {
	vecPool.Put(v[:0]) //nolint:staticcheck
}

func releaseAll(vs ...[]float64) {
	for _, v := range vs {
		putVec(v)
	}
}

// stepCaches holds per-timestep forward activations for backprop.
type stepCaches struct {
	xIdx  []int
	hPrev [][]float64
	z     [][]float64
	r     [][]float64
	hh    [][]float64
}

func newStepCaches(steps, hidden int) *stepCaches {
	c := &stepCaches{
		xIdx:  make([]int, steps),
		hPrev: make([][]float64, steps),
		z:     make([][]float64, steps),
		r:     make([][]float64, steps),
		hh:    make([][]float64, steps),
	}
	for t := 0; t < steps; t++ {
		c.hPrev[t] = getVec(hidden)
		c.z[t] = getVec(hidden)
		c.r[t] = getVec(hidden)
		c.hh[t] = getVec(hidden)
	}
	return c
}

func (c *stepCaches) release() {
	for t := range c.hPrev {
		releaseAll(c.hPrev[t], c.z[t], c.r[t], c.hh[t])
	}
}

// scratch holds backward-pass work vectors shared across samples.
type scratch struct {
	h, rh, dh, dhPrev []float64
	daZ, daR, daH     []float64
	drh, dx           []float64
	logits            []float64
}

func newScratch(hidden, vocab int) *scratch {
	return &scratch{
		h:      getVec(hidden),
		rh:     getVec(hidden),
		dh:     getVec(hidden),
		dhPrev: getVec(hidden),
		daZ:    getVec(hidden),
		daR:    getVec(hidden),
		daH:    getVec(hidden),
		drh:    getVec(hidden),
		dx:     getVec(hidden),
		logits: getVec(vocab),
	}
}

func (s *scratch) release() {
	releaseAll(s.h, s.rh, s.dh, s.dhPrev, s.daZ, s.daR, s.daH, s.drh, s.dx, s.logits)
}

// #endregion buffer-pool

// #region vector-math

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// matTVec computes out = mᵀ·d for an n x n matrix.
func matTVec(m [][]float64, d, out []float64, n int) {
	for j := 0; j < n; j++ {
		out[j] = 0
	}
	for i := 0; i < n; i++ {
		di := d[i]
		row := m[i]
		for j := 0; j < n; j++ {
			out[j] += row[j] * di
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softmaxInPlace converts logits to probabilities and returns the
// cross-entropy loss against target.
func softmaxInPlace(logits []float64, target int) float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range logits {
		logits[i] = math.Exp(v - max)
		sum += logits[i]
	}
	for i := range logits {
		logits[i] /= sum
	}
	p := logits[target]
	if p < 1e-12 {
		p = 1e-12
	}
	return -math.Log(p)
}

// topIDs returns the k highest-scoring indices, skipping index 0 (the
// pad/unknown token). Ties break on the lower id.
func topIDs(scores []float64, k int) []int {
	var ids []int
	for len(ids) < k {
		best := -1
		for id := 1; id < len(scores); id++ {
			if contains(ids, id) {
				continue
			}
			if best == -1 || scores[id] > scores[best] {
				best = id
			}
		}
		if best == -1 {
			break
		}
		ids = append(ids, best)
	}
	return ids
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// #endregion vector-math
