package codebook

import (
	"math"
	"math/rand"
	"time"
)

// #region config

// Config bounds the K-means codebook builder.
type Config struct {
	MinVectors  int   // build is only triggered once this many vectors accumulated
	MaxClusters int   // upper bound on k
	Iterations  int   // fixed Lloyd's iteration cap; no convergence check
	Seed        int64 // 0 means time-based
}

// DefaultConfig returns the standard clustering bounds.
func DefaultConfig() Config {
	return Config{
		MinVectors:  10,
		MaxClusters: 8,
		Iterations:  100,
	}
}

// #endregion config

// #region builder

// Builder accumulates feature vectors and clusters them into a small
// codebook of representative centroids. The codebook is diagnostic output
// only; nothing on the prediction path consumes it.
type Builder struct {
	config    Config
	rng       *rand.Rand
	vectors   [][]float64
	centroids [][]float64
}

// New creates an empty builder.
func New(config Config) *Builder {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Builder{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Add accumulates vectors for the next build.
func (b *Builder) Add(vectors ...[]float64) {
	b.vectors = append(b.vectors, vectors...)
}

// Count returns the number of accumulated vectors.
func (b *Builder) Count() int {
	return len(b.vectors)
}

// Ready reports whether enough vectors accumulated to build.
func (b *Builder) Ready() bool {
	return len(b.vectors) >= b.config.MinVectors
}

// Size returns the current codebook size.
func (b *Builder) Size() int {
	return len(b.centroids)
}

// Centroids returns the last built codebook.
func (b *Builder) Centroids() [][]float64 {
	out := make([][]float64, len(b.centroids))
	for i, c := range b.centroids {
		cp := make([]float64, len(c))
		copy(cp, c)
		out[i] = cp
	}
	return out
}

// #endregion builder

// #region build

// Build runs Lloyd's iteration over the accumulated vectors: random
// initialization in [-1, 1] per dimension, hard assignment by Euclidean
// distance, mean update per cluster, stopping only at the iteration cap.
// Returns nil when below the minimum vector count.
func (b *Builder) Build() [][]float64 {
	n := len(b.vectors)
	if n < b.config.MinVectors {
		return nil
	}
	k := b.config.MaxClusters
	if n/2 < k {
		k = n / 2
	}
	if k < 1 {
		k = 1
	}
	dim := len(b.vectors[0])

	centroids := make([][]float64, k)
	for i := range centroids {
		c := make([]float64, dim)
		for d := range c {
			c[d] = b.rng.Float64()*2 - 1
		}
		centroids[i] = c
	}

	assignments := make([]int, n)
	for iter := 0; iter < b.config.Iterations; iter++ {
		// Hard assignment
		for i, v := range b.vectors {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := sqDist(v, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			assignments[i] = best
		}

		// Mean update; empty clusters keep their previous centroid
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range b.vectors {
			c := assignments[i]
			counts[c]++
			for d := range v {
				sums[c][d] += v[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	b.centroids = centroids
	return b.Centroids()
}

// #endregion build

// #region reset

// Reset discards accumulated vectors and the built codebook.
func (b *Builder) Reset() {
	b.vectors = nil
	b.centroids = nil
}

// #endregion reset

// #region helpers

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// #endregion helpers
