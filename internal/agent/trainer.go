// Package agent trains actor-critic policies against imagined latent
// trajectories. The Explorer maximizes an intrinsic curiosity signal; the
// Achiever pursues latent goals through a goal-conditioned reward model.
package agent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"oneiros/internal/imagine"
	"oneiros/internal/policy"
	"oneiros/internal/returns"
	"oneiros/internal/world"
)

// Config carries the shared actor-critic hyperparameters.
type Config struct {
	Shape        world.Shape
	Horizon      int
	Discount     float64
	Lambda       float64
	EntropyScale float64
}

func (c Config) Validate() error {
	if err := c.Shape.Validate(); err != nil {
		return err
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be > 0, got %d", c.Horizon)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("discount must be in [0,1], got %f", c.Discount)
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("lambda must be in [0,1], got %f", c.Lambda)
	}
	if c.EntropyScale < 0 {
		return fmt.Errorf("entropy scale must be >= 0, got %f", c.EntropyScale)
	}
	return nil
}

// Losses are the scalar outputs of one training call. Parameters are not
// touched here: gradients have been accumulated into the actor and online
// critic, and the caller decides when to step the optimizers.
type Losses struct {
	Actor      float64
	Critic     float64
	MeanReward float64
}

// trainer is the imagination actor-critic shared by Explorer and Achiever.
type trainer struct {
	cfg          Config
	engine       *imagine.Engine
	actor        policy.Actor
	critic       policy.TrainableCritic
	targetCritic policy.TrainableCritic
}

func newTrainer(cfg Config, dynamics world.Dynamics, actor policy.Actor, critic, targetCritic policy.TrainableCritic) (trainer, error) {
	if err := cfg.Validate(); err != nil {
		return trainer{}, err
	}
	if actor == nil {
		return trainer{}, fmt.Errorf("actor is required")
	}
	if critic == nil || targetCritic == nil {
		return trainer{}, fmt.Errorf("critic and target critic are required")
	}
	engine, err := imagine.NewEngine(dynamics, cfg.Shape)
	if err != nil {
		return trainer{}, err
	}
	t := trainer{cfg: cfg, engine: engine, actor: actor, critic: critic, targetCritic: targetCritic}
	// Start the target as an exact copy of the online critic.
	if err := t.SyncTargetCritic(); err != nil {
		return trainer{}, err
	}
	return t, nil
}

// SyncTargetCritic hard-copies the online critic's parameters into the
// target critic. The copy is a single replace-all operation; the cadence
// belongs to the caller.
func (t *trainer) SyncTargetCritic() error {
	return t.targetCritic.SetParameters(t.critic.Parameters())
}

// run rolls out one imagined trajectory and accumulates actor and critic
// gradients from it. score computes one reward per flattened state; it is
// evaluated value-only (no gradient flows into the reward model here).
func (t *trainer) run(initZ, initH *mat.Dense, score func(flatZ, flatH *mat.Dense) ([]float64, error)) (Losses, error) {
	tr, err := t.engine.Rollout(t.actor, initZ, initH, t.cfg.Horizon)
	if err != nil {
		return Losses{}, err
	}
	horizon, batch := tr.Horizon, tr.Batch
	flatZ, flatH := tr.FlattenStates()

	// Rewards and target-critic values are targets, not gradient paths.
	rewards, err := score(flatZ, flatH)
	if err != nil {
		return Losses{}, err
	}
	targetValues, err := t.targetCritic.Value(flatZ, flatH)
	if err != nil {
		return Losses{}, err
	}
	if len(rewards) != horizon*batch {
		return Losses{}, fmt.Errorf("reward count mismatch: got=%d want=%d", len(rewards), horizon*batch)
	}

	rewardGrid := mat.NewDense(horizon, batch, rewards)
	valueGrid := mat.NewDense(horizon, batch, targetValues)
	targets, err := returns.LambdaTarget(rewardGrid, t.cfg.Discount, valueGrid, t.cfg.Lambda)
	if err != nil {
		return Losses{}, err
	}

	actorLoss, err := t.accumulateActor(tr, targets, valueGrid)
	if err != nil {
		return Losses{}, err
	}
	criticLoss, err := t.accumulateCritic(flatZ, flatH, targets, horizon, batch)
	if err != nil {
		return Losses{}, err
	}

	meanReward := 0.0
	for _, r := range rewards {
		meanReward += r
	}
	meanReward /= float64(len(rewards))

	return Losses{Actor: actorLoss, Critic: criticLoss, MeanReward: meanReward}, nil
}

// accumulateActor computes the policy-gradient-with-baseline loss
//
//	-sum_t mean_b( logProb * (target - vTarget) + entropyScale * entropy )
//
// and pushes its gradient through the recorded log-prob/entropy path. The
// advantage is built purely from target-network values, so it enters the
// gradient as a constant coefficient.
func (t *trainer) accumulateActor(tr *imagine.Trajectory, targets, targetValues *mat.Dense) (float64, error) {
	horizon, batch := tr.Horizon, tr.Batch
	loss := 0.0
	logProbGrad := make([]float64, batch)
	entropyGrad := make([]float64, batch)
	for step := 0; step < horizon; step++ {
		stepObjective := 0.0
		for b := 0; b < batch; b++ {
			advantage := targets.At(step, b) - targetValues.At(step, b)
			stepObjective += tr.LogProbs[step][b]*advantage + t.cfg.EntropyScale*tr.Entropies[step][b]
			logProbGrad[b] = -advantage / float64(batch)
			entropyGrad[b] = -t.cfg.EntropyScale / float64(batch)
		}
		loss -= stepObjective / float64(batch)
		if err := t.actor.AccumulateGrad(tr.ActZs[step], tr.ActHs[step], tr.Actions[step], logProbGrad, entropyGrad); err != nil {
			return 0, fmt.Errorf("actor grad at step %d: %w", step, err)
		}
	}
	return loss, nil
}

// accumulateCritic regresses the online critic onto the detached λ-targets
// through a unit-variance Normal log-density.
func (t *trainer) accumulateCritic(flatZ, flatH, targets *mat.Dense, horizon, batch int) (float64, error) {
	values, err := t.critic.Value(flatZ, flatH)
	if err != nil {
		return 0, err
	}
	n := float64(horizon * batch)
	loss := 0.0
	valueGrad := make([]float64, len(values))
	for i, value := range values {
		target := targets.At(i/batch, i%batch)
		dist := distuv.Normal{Mu: value, Sigma: 1}
		loss -= dist.LogProb(target) / n
		valueGrad[i] = (value - target) / n
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, fmt.Errorf("critic loss is not finite: %f", loss)
	}
	if err := t.critic.AccumulateGrad(flatZ, flatH, valueGrad); err != nil {
		return 0, err
	}
	return loss, nil
}
