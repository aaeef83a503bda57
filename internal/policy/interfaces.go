// Package policy defines the actor and critic contracts consumed by the
// imagination trainers, plus reference MLP-backed implementations.
//
// Gradient routing is explicit: forward methods (Act, Value) never touch
// gradient state, and AccumulateGrad pushes hand-computed loss
// coefficients back through the network. A tensor is "detached" exactly
// when no AccumulateGrad call is made for it.
package policy

import "gonum.org/v1/gonum/mat"

// Actor selects actions from latent states and exposes a score-function
// gradient path through its log-probabilities and entropies.
type Actor interface {
	// Act samples one action per batch row and returns the action matrix
	// (batch x actionDim) with per-row log-probabilities and entropies.
	Act(z, h *mat.Dense) (actions *mat.Dense, logProbs, entropies []float64, err error)
	// AccumulateGrad adds parameter gradients for actions previously
	// sampled at (z, h): logProbGrad[i] is dLoss/dlogProb and
	// entropyGrad[i] is dLoss/dEntropy for row i.
	AccumulateGrad(z, h, actions *mat.Dense, logProbGrad, entropyGrad []float64) error
}

// Critic predicts a scalar value per latent state.
type Critic interface {
	Value(z, h *mat.Dense) ([]float64, error)
}

// TrainableCritic is a critic whose parameters can be trained and
// snapshotted. Parameters/SetParameters exist for the hard target-critic
// sync: a single replace-all copy, never a partial update.
type TrainableCritic interface {
	Critic
	AccumulateGrad(z, h *mat.Dense, valueGrad []float64) error
	Parameters() []float64
	SetParameters(params []float64) error
}
