package seqmodel

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"
)

// #region config

// ErrTrainingInFlight is returned when Train is called while another run is
// active. The engine coalesces such requests instead of queueing them.
var ErrTrainingInFlight = errors.New("seqmodel: training already in flight")

// GRUConfig parameterizes the recurrent model.
type GRUConfig struct {
	SequenceLength int     // window length L; shorter histories are left-padded with 0
	HiddenSize     int     // hidden and embedding dimensionality
	Epochs         int     // fixed small epoch count per training run
	BatchSize      int     // cap on windows consumed per run (most recent win)
	LearningRate   float64 // SGD step size
	Candidates     int     // ids returned by Predict
	Seed           int64   // 0 means time-based
}

// DefaultGRUConfig returns the standard model shape.
func DefaultGRUConfig() GRUConfig {
	return GRUConfig{
		SequenceLength: 5,
		HiddenSize:     16,
		Epochs:         3,
		BatchSize:      32,
		LearningRate:   0.05,
		Candidates:     3,
	}
}

// #endregion config

// #region gru-struct

// GRU is a small gated recurrent next-token model over vocabulary ids. The
// embedding table and output layer grow lazily with the highest id observed.
// Weight access is serialized by mu; the lifecycle state has its own lock so
// State stays readable mid-training.
type GRU struct {
	mu      sync.Mutex
	stateMu sync.Mutex
	state   State

	config GRUConfig
	rng    *rand.Rand
	vocab  int // rows in emb and wo; row 0 is the pad/unknown token

	emb        [][]float64 // vocab x H
	wz, wr, wh [][]float64 // H x H input weights
	uz, ur, uh [][]float64 // H x H recurrent weights
	bz, br, bh []float64
	wo         [][]float64 // vocab x H output weights
	bo         []float64
}

// NewGRU creates an untrained model.
func NewGRU(config GRUConfig) *GRU {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &GRU{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		state:  StateUntrained,
	}
	g.initWeights()
	return g
}

func (g *GRU) initWeights() {
	h := g.config.HiddenSize
	g.vocab = 1
	g.emb = [][]float64{g.randVec(h)}
	g.wz, g.wr, g.wh = g.randMat(h, h), g.randMat(h, h), g.randMat(h, h)
	g.uz, g.ur, g.uh = g.randMat(h, h), g.randMat(h, h), g.randMat(h, h)
	g.bz, g.br, g.bh = make([]float64, h), make([]float64, h), make([]float64, h)
	g.wo = [][]float64{g.randVec(h)}
	g.bo = make([]float64, 1)
}

// State reports the lifecycle state.
func (g *GRU) State() State {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.state
}

func (g *GRU) setState(s State) {
	g.stateMu.Lock()
	g.state = s
	g.stateMu.Unlock()
}

// Reset returns the model to StateUntrained with fresh weights.
func (g *GRU) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initWeights()
	g.setState(StateUntrained)
}

// #endregion gru-struct

// #region predict

// Predict runs a forward pass over the padded window and returns the top
// candidate ids, never including the pad token. Internal failures are logged
// and surface as an empty list.
func (g *GRU) Predict(window []int) (ids []int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[GRU] predict failed: %v", r)
			ids = nil
		}
	}()

	if g.State() == StateUntrained {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vocab <= 1 {
		return nil
	}

	hs := g.config.HiddenSize
	h := getVec(hs)
	z := getVec(hs)
	r := getVec(hs)
	hh := getVec(hs)
	rh := getVec(hs)
	logits := getVec(g.vocab)
	defer releaseAll(h, z, r, hh, rh, logits)

	for _, id := range g.padWindow(window) {
		g.step(g.embRow(id), h, z, r, hh, rh)
	}
	for v := 0; v < g.vocab; v++ {
		logits[v] = g.bo[v] + dot(g.wo[v], h)
	}

	return topIDs(logits, g.config.Candidates)
}

// padWindow left-pads with 0 (or keeps the trailing L ids) and clips ids the
// model has never been sized for down to 0.
func (g *GRU) padWindow(window []int) []int {
	l := g.config.SequenceLength
	out := make([]int, l)
	src := window
	if len(src) > l {
		src = src[len(src)-l:]
	}
	offset := l - len(src)
	for i, id := range src {
		if id < 0 || id >= g.vocab {
			id = 0
		}
		out[offset+i] = id
	}
	return out
}

func (g *GRU) embRow(id int) []float64 {
	return g.emb[id]
}

// step advances the hidden state in place for one input embedding.
func (g *GRU) step(x, h, z, r, hh, rh []float64) {
	hs := g.config.HiddenSize
	for i := 0; i < hs; i++ {
		z[i] = sigmoid(g.bz[i] + dot(g.wz[i], x) + dot(g.uz[i], h))
		r[i] = sigmoid(g.br[i] + dot(g.wr[i], x) + dot(g.ur[i], h))
	}
	for i := 0; i < hs; i++ {
		rh[i] = r[i] * h[i]
	}
	for i := 0; i < hs; i++ {
		hh[i] = math.Tanh(g.bh[i] + dot(g.wh[i], x) + dot(g.uh[i], rh))
	}
	for i := 0; i < hs; i++ {
		h[i] = (1-z[i])*h[i] + z[i]*hh[i]
	}
}

// #endregion predict

// #region train

// Train runs a fixed number of SGD epochs over the given windows. Inputs are
// capped to the most recent BatchSize windows. Returns ErrTrainingInFlight
// when called concurrently with itself.
func (g *GRU) Train(inputs [][]int, targets []int) (TrainSummary, error) {
	if len(inputs) != len(targets) {
		return TrainSummary{}, fmt.Errorf("seqmodel: %d inputs for %d targets", len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return TrainSummary{}, errors.New("seqmodel: no training samples")
	}

	g.stateMu.Lock()
	if g.state == StateTraining {
		g.stateMu.Unlock()
		return TrainSummary{}, ErrTrainingInFlight
	}
	g.state = StateTraining
	g.stateMu.Unlock()
	defer g.setState(StateReady)

	if len(inputs) > g.config.BatchSize {
		inputs = inputs[len(inputs)-g.config.BatchSize:]
		targets = targets[len(targets)-g.config.BatchSize:]
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	maxID := 0
	for _, w := range inputs {
		for _, id := range w {
			if id > maxID {
				maxID = id
			}
		}
	}
	for _, t := range targets {
		if t > maxID {
			maxID = t
		}
	}
	g.ensureVocab(maxID + 1)

	hs := g.config.HiddenSize
	l := g.config.SequenceLength

	// Per-step forward caches plus backward scratch, all pooled and released
	// on every exit path.
	caches := newStepCaches(l, hs)
	scratch := newScratch(hs, g.vocab)
	defer caches.release()
	defer scratch.release()

	var lastLoss float64
	for epoch := 0; epoch < g.config.Epochs; epoch++ {
		var epochLoss float64
		for i, w := range inputs {
			epochLoss += g.trainSample(g.padWindow(w), targets[i], caches, scratch)
		}
		lastLoss = epochLoss / float64(len(inputs))
	}

	return TrainSummary{
		Samples: len(inputs),
		Epochs:  g.config.Epochs,
		Loss:    lastLoss,
	}, nil
}

func (g *GRU) ensureVocab(n int) {
	hs := g.config.HiddenSize
	for g.vocab < n {
		g.emb = append(g.emb, g.randVec(hs))
		g.wo = append(g.wo, g.randVec(hs))
		g.bo = append(g.bo, 0)
		g.vocab++
	}
}

// trainSample does one forward pass, softmax cross-entropy, and backprop
// through time, applying SGD updates immediately. Returns the sample loss.
func (g *GRU) trainSample(window []int, target int, c *stepCaches, s *scratch) float64 {
	hs := g.config.HiddenSize
	lr := g.config.LearningRate

	// Forward, caching per-step activations.
	h := s.h
	zero(h)
	for t, id := range window {
		c.xIdx[t] = id
		copy(c.hPrev[t], h)
		g.step(g.embRow(id), h, c.z[t], c.r[t], c.hh[t], s.rh)
	}

	// Output layer + softmax.
	logits := s.logits[:g.vocab]
	for v := 0; v < g.vocab; v++ {
		logits[v] = g.bo[v] + dot(g.wo[v], h)
	}
	loss := softmaxInPlace(logits, target)

	// dLogits = probs - onehot(target); dh = woᵀ·dLogits, reading each wo row
	// before updating it.
	dh := s.dh
	zero(dh)
	for v := 0; v < g.vocab; v++ {
		d := logits[v]
		if v == target {
			d -= 1
		}
		row := g.wo[v]
		for j := 0; j < hs; j++ {
			dh[j] += row[j] * d
			row[j] -= lr * d * h[j]
		}
		g.bo[v] -= lr * d
	}

	// Backprop through time.
	for t := len(window) - 1; t >= 0; t-- {
		hPrev, z, r, hh := c.hPrev[t], c.z[t], c.r[t], c.hh[t]
		x := g.embRow(c.xIdx[t])

		daZ, daR, daH := s.daZ, s.daR, s.daH
		drh, dhPrev, dx := s.drh, s.dhPrev, s.dx

		for j := 0; j < hs; j++ {
			daZ[j] = dh[j] * (hh[j] - hPrev[j]) * z[j] * (1 - z[j])
			daH[j] = dh[j] * z[j] * (1 - hh[j]*hh[j])
			dhPrev[j] = dh[j] * (1 - z[j])
		}
		matTVec(g.uh, daH, drh, hs)
		for j := 0; j < hs; j++ {
			daR[j] = drh[j] * hPrev[j] * r[j] * (1 - r[j])
			dhPrev[j] += drh[j] * r[j]
		}
		for i := 0; i < hs; i++ {
			for j := 0; j < hs; j++ {
				dhPrev[j] += g.uz[i][j]*daZ[i] + g.ur[i][j]*daR[i]
			}
		}
		for j := 0; j < hs; j++ {
			dx[j] = 0
			for i := 0; i < hs; i++ {
				dx[j] += g.wz[i][j]*daZ[i] + g.wr[i][j]*daR[i] + g.wh[i][j]*daH[i]
			}
		}

		// Parameter updates after all reads of the current weights.
		for i := 0; i < hs; i++ {
			wzi, wri, whi := g.wz[i], g.wr[i], g.wh[i]
			uzi, uri, uhi := g.uz[i], g.ur[i], g.uh[i]
			for j := 0; j < hs; j++ {
				wzi[j] -= lr * daZ[i] * x[j]
				wri[j] -= lr * daR[i] * x[j]
				whi[j] -= lr * daH[i] * x[j]
				uzi[j] -= lr * daZ[i] * hPrev[j]
				uri[j] -= lr * daR[i] * hPrev[j]
				uhi[j] -= lr * daH[i] * (r[j] * hPrev[j])
			}
			g.bz[i] -= lr * daZ[i]
			g.br[i] -= lr * daR[i]
			g.bh[i] -= lr * daH[i]
		}
		for j := 0; j < hs; j++ {
			x[j] -= lr * dx[j]
		}

		copy(dh, dhPrev)
	}

	return loss
}

// #endregion train

// #region init-helpers

func (g *GRU) randVec(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = (g.rng.Float64()*2 - 1) * 0.08
	}
	return v
}

func (g *GRU) randMat(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = g.randVec(cols)
	}
	return m
}

// #endregion init-helpers
