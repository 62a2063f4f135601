package engine

import (
	"github.com/danielpatrickdp/synapse/internal/codebook"
	"github.com/danielpatrickdp/synapse/internal/difficulty"
	"github.com/danielpatrickdp/synapse/internal/miner"
	"github.com/danielpatrickdp/synapse/internal/seqmodel"
	"github.com/danielpatrickdp/synapse/internal/vocab"
)

// #region config

// Version identifies the engine build on the getInfo surface.
const Version = "0.4.0"

// signatureLength is how many trailing event types form a difficulty key.
const signatureLength = 3

// Config bundles the configuration of every owned component plus the
// engine-level thresholds.
type Config struct {
	Vocab      vocab.Config
	Codebook   codebook.Config
	Model      seqmodel.GRUConfig
	Miner      miner.Config
	Difficulty difficulty.Config

	TopK               int     // frequency-model candidates
	TrailingWindow     int     // trailing target ids considered by predict
	GuidanceConfidence float64 // fixed confidence of task guidance suggestions
	TaskMatchMinLength int     // shortest live prefix that can match a task

	InsightGate         float64 // minimum insight confidence to resolve a pattern
	FewShotGate         float64 // minimum sample confidence for the few-shot path
	FewShotLearningRate float64 // default learning rate when the caller passes none
	FewShotScale        float64 // multiplier applied to confidence * learningRate
	RegularBoost        float64 // fixed edge boost for lower-confidence samples
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		Vocab:      vocab.DefaultConfig(),
		Codebook:   codebook.DefaultConfig(),
		Model:      seqmodel.DefaultGRUConfig(),
		Miner:      miner.DefaultConfig(),
		Difficulty: difficulty.DefaultConfig(),

		TopK:               3,
		TrailingWindow:     10,
		GuidanceConfidence: 0.8,
		TaskMatchMinLength: 2,

		InsightGate:         0.7,
		FewShotGate:         0.7,
		FewShotLearningRate: 0.1,
		FewShotScale:        10,
		RegularBoost:        0.5,
	}
}

// #endregion config
