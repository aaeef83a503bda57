package reward

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"oneiros/internal/world"
)

const cosineEpsilon = 1e-8

// CosineReward is a closed-form goal reward with no learned parameters:
// the goal embedding is decoded into a stochastic state through the
// dynamics model's posterior from a zero recurrent state, and the reward
// is the cosine similarity between the flattened current and goal states.
type CosineReward struct {
	shape    world.Shape
	dynamics world.Dynamics
}

func NewCosineReward(shape world.Shape, dynamics world.Dynamics) (*CosineReward, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if dynamics == nil {
		return nil, fmt.Errorf("dynamics model is required")
	}
	return &CosineReward{shape: shape, dynamics: dynamics}, nil
}

func (m *CosineReward) ComputeReward(z, h, goalEmb *mat.Dense) ([]float64, error) {
	batch, err := world.CheckStateBatch(z, h, m.shape)
	if err != nil {
		return nil, err
	}
	gr, gc := goalEmb.Dims()
	if gr != batch || gc != m.shape.EmbDim {
		return nil, fmt.Errorf("goal embedding shape mismatch: got=%dx%d want=%dx%d", gr, gc, batch, m.shape.EmbDim)
	}

	initH := mat.NewDense(batch, m.shape.HDim, nil)
	goalZ, err := m.dynamics.PosteriorMean(initH, goalEmb)
	if err != nil {
		return nil, err
	}

	rewards := make([]float64, batch)
	for r := 0; r < batch; r++ {
		current := z.RawRowView(r)
		goal := goalZ.RawRowView(r)
		norm := floats.Norm(current, 2) * floats.Norm(goal, 2)
		rewards[r] = floats.Dot(current, goal) / (norm + cosineEpsilon)
	}
	return rewards, nil
}

// Train is a no-op: the cosine reward is frozen by construction. It exists
// so reward models stay interchangeable behind one contract.
func (m *CosineReward) Train(_ *rand.Rand, _, _ []*mat.Dense, _ TrainSpec) (float64, error) {
	return 0, nil
}
