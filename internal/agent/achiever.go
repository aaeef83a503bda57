package agent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/policy"
	"oneiros/internal/reward"
	"oneiros/internal/world"
)

// Achiever trains a goal-conditioned policy: every imagined state is
// scored against the goal embedding assigned to its batch row.
type Achiever struct {
	trainer
	model reward.Model
}

func NewAchiever(cfg Config, dynamics world.Dynamics, actor policy.Actor, critic, targetCritic policy.TrainableCritic, model reward.Model) (*Achiever, error) {
	if model == nil {
		return nil, fmt.Errorf("reward model is required")
	}
	tr, err := newTrainer(cfg, dynamics, actor, critic, targetCritic)
	if err != nil {
		return nil, err
	}
	return &Achiever{trainer: tr, model: model}, nil
}

// Train imagines one horizon and accumulates gradients against the
// goal-conditioned reward. goalEmb holds one embedding per batch row; the
// same goal follows its row through every imagined step.
func (a *Achiever) Train(initZ, initH, goalEmb *mat.Dense) (Losses, error) {
	batch, err := world.CheckStateBatch(initZ, initH, a.cfg.Shape)
	if err != nil {
		return Losses{}, err
	}
	gr, gc := goalEmb.Dims()
	if gr != batch || gc != a.cfg.Shape.EmbDim {
		return Losses{}, fmt.Errorf("goal embedding shape mismatch: got=%dx%d want=%dx%d", gr, gc, batch, a.cfg.Shape.EmbDim)
	}

	// The flattened rollout is step-major, so the goal for flat row
	// t*batch+b is goalEmb row b.
	tiled := mat.NewDense(a.cfg.Horizon*batch, a.cfg.Shape.EmbDim, nil)
	for t := 0; t < a.cfg.Horizon; t++ {
		for b := 0; b < batch; b++ {
			copy(tiled.RawRowView(t*batch+b), goalEmb.RawRowView(b))
		}
	}

	return a.run(initZ, initH, func(flatZ, flatH *mat.Dense) ([]float64, error) {
		return a.model.ComputeReward(flatZ, flatH, tiled)
	})
}
