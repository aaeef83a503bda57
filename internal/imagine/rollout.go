// Package imagine drives a policy through a latent dynamics model for a
// fixed horizon, entirely inside latent space.
package imagine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/policy"
	"oneiros/internal/world"
)

// Trajectory records one imagined rollout. Latent states are detached
// value snapshots; the gradient path survives through the recorded actor
// inputs and actions, which the trainers replay via Actor.AccumulateGrad.
// Entries are immutable once recorded.
type Trajectory struct {
	Horizon int
	Batch   int

	// Post-transition latent states, one per step.
	Zs []*mat.Dense
	Hs []*mat.Dense

	// Pre-transition states the actor acted on, with the sampled actions.
	ActZs   []*mat.Dense
	ActHs   []*mat.Dense
	Actions []*mat.Dense

	// Per-step, per-row policy terms.
	LogProbs  [][]float64
	Entropies [][]float64
}

// FlattenStates stacks the recorded states into (horizon*batch) x dim
// matrices, step-major: row t*batch+b is step t, batch element b.
func (tr *Trajectory) FlattenStates() (*mat.Dense, *mat.Dense) {
	_, zw := tr.Zs[0].Dims()
	_, hw := tr.Hs[0].Dims()
	z := mat.NewDense(tr.Horizon*tr.Batch, zw, nil)
	h := mat.NewDense(tr.Horizon*tr.Batch, hw, nil)
	for t := 0; t < tr.Horizon; t++ {
		for b := 0; b < tr.Batch; b++ {
			copy(z.RawRowView(t*tr.Batch+b), tr.Zs[t].RawRowView(b))
			copy(h.RawRowView(t*tr.Batch+b), tr.Hs[t].RawRowView(b))
		}
	}
	return z, h
}

// Engine rolls a policy forward through a dynamics model.
type Engine struct {
	dynamics world.Dynamics
	shape    world.Shape
}

func NewEngine(dynamics world.Dynamics, shape world.Shape) (*Engine, error) {
	if dynamics == nil {
		return nil, fmt.Errorf("dynamics model is required")
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Engine{dynamics: dynamics, shape: shape}, nil
}

// Rollout simulates horizon steps starting from a batch of initial latent
// states. The initial batch is copied up front, so the caller's matrices
// are never aliased. No gradient flows through the dynamics model: its
// outputs are recorded as plain values.
func (e *Engine) Rollout(actor policy.Actor, initZ, initH *mat.Dense, horizon int) (*Trajectory, error) {
	if actor == nil {
		return nil, fmt.Errorf("actor is required")
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be > 0, got %d", horizon)
	}
	batch, err := world.CheckStateBatch(initZ, initH, e.shape)
	if err != nil {
		return nil, err
	}

	tr := &Trajectory{
		Horizon:   horizon,
		Batch:     batch,
		Zs:        make([]*mat.Dense, horizon),
		Hs:        make([]*mat.Dense, horizon),
		ActZs:     make([]*mat.Dense, horizon),
		ActHs:     make([]*mat.Dense, horizon),
		Actions:   make([]*mat.Dense, horizon),
		LogProbs:  make([][]float64, horizon),
		Entropies: make([][]float64, horizon),
	}

	z := mat.DenseCopyOf(initZ)
	h := mat.DenseCopyOf(initH)
	for t := 0; t < horizon; t++ {
		actions, logProbs, entropies, err := actor.Act(z, h)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", t, err)
		}
		tr.ActZs[t] = z
		tr.ActHs[t] = h
		tr.Actions[t] = actions
		tr.LogProbs[t] = logProbs
		tr.Entropies[t] = entropies

		nextH, nextZ, err := e.dynamics.Imagine(actions, z, h)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", t, err)
		}
		tr.Zs[t] = nextZ
		tr.Hs[t] = nextH
		z, h = nextZ, nextH
	}
	return tr, nil
}
