package agent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/policy"
	"oneiros/internal/reward"
	"oneiros/internal/world"
)

// Explorer trains a policy to maximize an intrinsic reward over imagined
// rollouts. The reward source is queried value-only; training the source
// itself is the caller's job.
type Explorer struct {
	trainer
	source reward.Source
}

func NewExplorer(cfg Config, dynamics world.Dynamics, actor policy.Actor, critic, targetCritic policy.TrainableCritic, source reward.Source) (*Explorer, error) {
	if source == nil {
		return nil, fmt.Errorf("reward source is required")
	}
	tr, err := newTrainer(cfg, dynamics, actor, critic, targetCritic)
	if err != nil {
		return nil, err
	}
	return &Explorer{trainer: tr, source: source}, nil
}

// Train imagines one horizon from the given initial latent batch and
// accumulates actor and critic gradients against the intrinsic reward.
func (e *Explorer) Train(initZ, initH *mat.Dense) (Losses, error) {
	return e.run(initZ, initH, e.source.Rewards)
}
