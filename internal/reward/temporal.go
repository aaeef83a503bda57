package reward

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/world"
)

// TemporalDistanceReward rewards goal-directed behavior with the negated
// predicted temporal distance between current and goal embeddings, and
// trains the distance estimator by contrastive regression. The encoder is
// never trained by this model: embeddings enter the estimator as detached
// values.
type TemporalDistanceReward struct {
	shape     world.Shape
	encoder   world.Encoder
	estimator Estimator
}

func NewTemporalDistanceReward(shape world.Shape, encoder world.Encoder, estimator Estimator) (*TemporalDistanceReward, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if estimator == nil {
		return nil, fmt.Errorf("distance estimator is required")
	}
	return &TemporalDistanceReward{shape: shape, encoder: encoder, estimator: estimator}, nil
}

// ComputeReward embeds each latent state and returns the negated predicted
// distance to the matching row of goalEmb.
func (m *TemporalDistanceReward) ComputeReward(z, h, goalEmb *mat.Dense) ([]float64, error) {
	batch, err := world.CheckStateBatch(z, h, m.shape)
	if err != nil {
		return nil, err
	}
	gr, gc := goalEmb.Dims()
	if gr != batch || gc != m.shape.EmbDim {
		return nil, fmt.Errorf("goal embedding shape mismatch: got=%dx%d want=%dx%d", gr, gc, batch, m.shape.EmbDim)
	}
	currentEmb, err := m.encoder.EmbedMean(z, h)
	if err != nil {
		return nil, err
	}
	return m.negatedDistance(currentEmb, goalEmb)
}

// ImagineReward scores a latent state against a goal that is itself
// expressed as a latent state.
func (m *TemporalDistanceReward) ImagineReward(currentZ, currentH, goalZ, goalH *mat.Dense) ([]float64, error) {
	if _, err := world.CheckStateBatch(currentZ, currentH, m.shape); err != nil {
		return nil, err
	}
	if _, err := world.CheckStateBatch(goalZ, goalH, m.shape); err != nil {
		return nil, err
	}
	currentEmb, err := m.encoder.EmbedMean(currentZ, currentH)
	if err != nil {
		return nil, err
	}
	goalEmb, err := m.encoder.EmbedMean(goalZ, goalH)
	if err != nil {
		return nil, err
	}
	return m.negatedDistance(currentEmb, goalEmb)
}

// Train regresses the distance estimator on positive (same trajectory,
// time-gap labels) and negative (cross-episode, label 1.0) pairs drawn
// from the detached latent sequence. Index sampling uses the supplied
// generator only; nothing global.
func (m *TemporalDistanceReward) Train(rng *rand.Rand, zs, hs []*mat.Dense, spec TrainSpec) (float64, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	if err := checkSequence(zs, hs, spec.Horizon, spec.BatchSize); err != nil {
		return 0, err
	}

	current, goal, err := samplePositivePairs(rng, spec.Horizon, spec.BatchSize, spec.NumPositives)
	if err != nil {
		return 0, err
	}
	targets := make([]float64, spec.NumPositives)
	for i := range targets {
		targets[i] = float64(goal[i].time-current[i].time) / float64(spec.Horizon)
	}
	loss, err := m.regressPairs(zs, hs, current, goal, targets)
	if err != nil {
		return 0, err
	}

	numNegatives := spec.NumNegatives()
	if numNegatives > 0 {
		current, goal, err = sampleNegativePairs(rng, numNegatives, spec.Horizon, spec.BatchSize, spec.BatchLength)
		if err != nil {
			return 0, err
		}
		targets = make([]float64, numNegatives)
		for i := range targets {
			targets[i] = 1.0
		}
		negLoss, err := m.regressPairs(zs, hs, current, goal, targets)
		if err != nil {
			return 0, err
		}
		loss += negLoss
	}
	return loss, nil
}

// negatedDistance predicts distances between the embeddings and returns
// them negated. No gradient.
func (m *TemporalDistanceReward) negatedDistance(currentEmb, goalEmb *mat.Dense) ([]float64, error) {
	dists, err := m.estimator.Distance(currentEmb, goalEmb)
	if err != nil {
		return nil, err
	}
	for i := range dists {
		dists[i] = -dists[i]
	}
	return dists, nil
}

// regressPairs gathers the indexed states, embeds both sides, and applies
// one MSE regression step's worth of gradient to the estimator.
func (m *TemporalDistanceReward) regressPairs(zs, hs []*mat.Dense, current, goal []indexPair, targets []float64) (float64, error) {
	currentZ, currentH := gatherStates(zs, hs, current, m.shape)
	goalZ, goalH := gatherStates(zs, hs, goal, m.shape)

	currentEmb, err := m.encoder.EmbedMean(currentZ, currentH)
	if err != nil {
		return 0, err
	}
	goalEmb, err := m.encoder.EmbedMean(goalZ, goalH)
	if err != nil {
		return 0, err
	}

	preds, err := m.estimator.Distance(currentEmb, goalEmb)
	if err != nil {
		return 0, err
	}
	n := float64(len(targets))
	loss := 0.0
	grad := make([]float64, len(targets))
	for i, pred := range preds {
		diff := pred - targets[i]
		loss += diff * diff / n
		grad[i] = 2 * diff / n
	}
	if err := m.estimator.AccumulateGrad(currentEmb, goalEmb, grad); err != nil {
		return 0, err
	}
	return loss, nil
}

func gatherStates(zs, hs []*mat.Dense, idx []indexPair, shape world.Shape) (*mat.Dense, *mat.Dense) {
	z := mat.NewDense(len(idx), shape.ZWidth(), nil)
	h := mat.NewDense(len(idx), shape.HDim, nil)
	for i, p := range idx {
		copy(z.RawRowView(i), zs[p.time].RawRowView(p.batch))
		copy(h.RawRowView(i), hs[p.time].RawRowView(p.batch))
	}
	return z, h
}
