// Package reward supplies the training signal for imagined trajectories:
// a contrastively trained temporal latent-distance reward, a closed-form
// cosine goal reward, and an ensemble-disagreement curiosity reward.
package reward

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Source scores a batch of latent states with one scalar reward per row.
// Implementations are queried value-only; no gradient flows back to the
// caller's inputs.
type Source interface {
	Rewards(z, h *mat.Dense) ([]float64, error)
}

// Trainable is the uniform training contract shared by every reward
// model. zs/hs hold one (batch x dim) matrix per timestep and are treated
// as detached values. The returned loss has already been pushed into the
// model's own gradient accumulators; models without learned parameters
// return 0.
type Trainable interface {
	Train(rng *rand.Rand, zs, hs []*mat.Dense, spec TrainSpec) (float64, error)
}

// Model is a goal-conditioned reward model.
type Model interface {
	Trainable
	// ComputeReward scores each latent state against the goal embedding in
	// the matching row of goalEmb.
	ComputeReward(z, h, goalEmb *mat.Dense) ([]float64, error)
}

// Estimator maps pairs of embeddings to scalar pseudo-distances. Only the
// estimator's own parameters sit on the gradient path; its inputs are
// always detached embeddings.
type Estimator interface {
	Distance(current, goal *mat.Dense) ([]float64, error)
	// AccumulateGrad adds dLoss/dDistance contributions for a previously
	// evaluated pair batch.
	AccumulateGrad(current, goal *mat.Dense, distanceGrad []float64) error
}

// TrainSpec carries the contrastive-sampling geometry for one training
// call. BatchSize counts flattened sub-trajectories; BatchLength is how
// many consecutive sub-trajectories share one original episode.
type TrainSpec struct {
	NumPositives      int
	NegSamplingFactor float64
	Horizon           int
	BatchSize         int
	BatchLength       int
}

func (s TrainSpec) Validate() error {
	if s.NumPositives <= 0 {
		return fmt.Errorf("num positives must be > 0, got %d", s.NumPositives)
	}
	if s.NegSamplingFactor < 0 {
		return fmt.Errorf("negative sampling factor must be >= 0, got %f", s.NegSamplingFactor)
	}
	if s.Horizon <= 0 {
		return fmt.Errorf("horizon must be > 0, got %d", s.Horizon)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d", s.BatchSize)
	}
	if s.BatchLength <= 0 {
		return fmt.Errorf("batch length must be > 0, got %d", s.BatchLength)
	}
	// Cross-episode negatives need at least two episode groups in the
	// batch; with fewer there is no valid goal index to draw.
	if s.NegSamplingFactor > 0 && s.BatchSize/s.BatchLength < 2 {
		return fmt.Errorf("negative sampling needs >= 2 episode groups: batch size=%d batch length=%d", s.BatchSize, s.BatchLength)
	}
	return nil
}

// NumNegatives is the negative pair count implied by the sampling factor.
func (s TrainSpec) NumNegatives() int {
	return int(float64(s.NumPositives) * s.NegSamplingFactor)
}

// checkSequence validates that zs/hs form a horizon-length sequence of
// coherent (batch x dim) latent batches.
func checkSequence(zs, hs []*mat.Dense, horizon, batchSize int) error {
	if len(zs) != horizon || len(hs) != horizon {
		return fmt.Errorf("sequence length mismatch: zs=%d hs=%d want=%d", len(zs), len(hs), horizon)
	}
	for t := 0; t < horizon; t++ {
		zr, _ := zs[t].Dims()
		hr, _ := hs[t].Dims()
		if zr != batchSize || hr != batchSize {
			return fmt.Errorf("step %d batch mismatch: z rows=%d h rows=%d want=%d", t, zr, hr, batchSize)
		}
	}
	return nil
}
