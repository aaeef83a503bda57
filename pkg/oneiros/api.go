// Package oneiros is the public facade: it wires the reference world
// model, policy networks, and reward models into a training loop and
// persists run records and per-step metrics.
package oneiros

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"oneiros/internal/agent"
	"oneiros/internal/imagine"
	"oneiros/internal/model"
	"oneiros/internal/policy"
	"oneiros/internal/reward"
	"oneiros/internal/storage"
	"oneiros/internal/world"
)

const (
	ModeExplorer = "explorer"
	ModeAchiever = "achiever"

	RewardTemporal = "temporal"
	RewardCosine   = "cosine"
	RewardEnsemble = "ensemble"
)

// TrainRequest carries every hyperparameter of one training run. Zero
// values are replaced by defaults in Run.
type TrainRequest struct {
	Mode        string
	RewardModel string
	Seed        int64

	Steps            int
	Horizon          int
	BatchSize        int
	BatchLength      int
	SlowCriticUpdate int

	ZDim       int
	NumClasses int
	HDim       int
	EmbDim     int
	ActionDim  int
	HiddenDim  int

	Discount     float64
	Lambda       float64
	EntropyScale float64
	MinStd       float64

	ActorLR  float64
	CriticLR float64
	RewardLR float64

	NumPositives      int
	NegSamplingFactor float64
	EnsembleHeads     int
}

// RunSummary reports the outcome of a completed training run.
type RunSummary struct {
	RunID      string
	Mode       string
	Reward     string
	Steps      int
	Elapsed    time.Duration
	FinalLoss  agent.Losses
	RewardLoss float64
}

func applyDefaults(req TrainRequest) TrainRequest {
	if req.Mode == "" {
		req.Mode = ModeExplorer
	}
	if req.RewardModel == "" {
		req.RewardModel = RewardTemporal
	}
	if req.Steps <= 0 {
		req.Steps = 100
	}
	if req.Horizon <= 0 {
		req.Horizon = 15
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 16
	}
	if req.BatchLength <= 0 {
		req.BatchLength = 4
	}
	if req.SlowCriticUpdate <= 0 {
		req.SlowCriticUpdate = 100
	}
	if req.ZDim <= 0 {
		req.ZDim = 8
	}
	if req.NumClasses <= 0 {
		req.NumClasses = 8
	}
	if req.HDim <= 0 {
		req.HDim = 32
	}
	if req.EmbDim <= 0 {
		req.EmbDim = 16
	}
	if req.ActionDim <= 0 {
		req.ActionDim = 4
	}
	if req.HiddenDim <= 0 {
		req.HiddenDim = 64
	}
	if req.Discount <= 0 {
		req.Discount = 0.99
	}
	if req.Lambda <= 0 {
		req.Lambda = 0.95
	}
	if req.EntropyScale <= 0 {
		req.EntropyScale = 1e-4
	}
	if req.MinStd <= 0 {
		req.MinStd = 0.1
	}
	if req.ActorLR <= 0 {
		req.ActorLR = 8e-5
	}
	if req.CriticLR <= 0 {
		req.CriticLR = 8e-5
	}
	if req.RewardLR <= 0 {
		req.RewardLR = 3e-4
	}
	if req.NumPositives <= 0 {
		req.NumPositives = 20
	}
	if req.NegSamplingFactor < 0 {
		req.NegSamplingFactor = 0
	}
	if req.RewardModel == RewardTemporal && req.NegSamplingFactor == 0 {
		req.NegSamplingFactor = 0.3
	}
	if req.EnsembleHeads <= 0 {
		req.EnsembleHeads = 5
	}
	return req
}

func validate(req TrainRequest) error {
	switch req.Mode {
	case ModeExplorer, ModeAchiever:
	default:
		return fmt.Errorf("unsupported mode: %s", req.Mode)
	}
	switch req.RewardModel {
	case RewardTemporal, RewardCosine, RewardEnsemble:
	default:
		return fmt.Errorf("unsupported reward model: %s", req.RewardModel)
	}
	if req.Mode == ModeAchiever && req.RewardModel == RewardEnsemble {
		return errors.New("ensemble reward is not goal-conditioned; use it with the explorer")
	}
	if req.BatchSize%req.BatchLength != 0 {
		return fmt.Errorf("batch size %d must be a multiple of batch length %d", req.BatchSize, req.BatchLength)
	}
	if req.NegSamplingFactor > 0 && req.BatchSize/req.BatchLength < 2 {
		return fmt.Errorf("negative sampling needs >= 2 episode groups: batch size=%d batch length=%d", req.BatchSize, req.BatchLength)
	}
	return nil
}

// Run executes one training run against the given store and returns its
// summary. The store must already be initialized.
func Run(ctx context.Context, req TrainRequest, store storage.Store) (RunSummary, error) {
	req = applyDefaults(req)
	if err := validate(req); err != nil {
		return RunSummary{}, err
	}
	if store == nil {
		return RunSummary{}, errors.New("store is required")
	}

	rng := rand.New(rand.NewSource(req.Seed))
	src := exprand.New(exprand.NewSource(uint64(req.Seed) + 1))

	shape := world.Shape{
		ZDim:       req.ZDim,
		NumClasses: req.NumClasses,
		HDim:       req.HDim,
		EmbDim:     req.EmbDim,
		ActionDim:  req.ActionDim,
	}
	loop, err := buildLoop(rng, src, shape, req)
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now()
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:              uuid.New().String(),
		Mode:            req.Mode,
		RewardModel:     req.RewardModel,
		Seed:            req.Seed,
		Steps:           req.Steps,
		Horizon:         req.Horizon,
		BatchSize:       req.BatchSize,
		BatchLength:     req.BatchLength,
		CreatedUnix:     started.Unix(),
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}

	var (
		losses     agent.Losses
		rewardLoss float64
	)
	metrics := make([]model.StepMetrics, 0, req.Steps)
	for step := 1; step <= req.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}

		rewardLoss, err = loop.trainRewardModel(rng, req)
		if err != nil {
			return RunSummary{}, fmt.Errorf("step %d: reward model: %w", step, err)
		}

		losses, err = loop.trainPolicy(rng, req)
		if err != nil {
			return RunSummary{}, fmt.Errorf("step %d: policy: %w", step, err)
		}
		loop.stepOptimizers(req)

		if step%req.SlowCriticUpdate == 0 {
			if err := loop.syncTarget(); err != nil {
				return RunSummary{}, fmt.Errorf("step %d: target sync: %w", step, err)
			}
		}

		metrics = append(metrics, model.StepMetrics{
			VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
			Step:            step,
			ActorLoss:       losses.Actor,
			CriticLoss:      losses.Critic,
			RewardLoss:      rewardLoss,
			MeanReward:      losses.MeanReward,
		})
	}
	if err := store.AppendMetrics(ctx, run.ID, metrics); err != nil {
		return RunSummary{}, fmt.Errorf("save metrics: %w", err)
	}

	return RunSummary{
		RunID:      run.ID,
		Mode:       req.Mode,
		Reward:     req.RewardModel,
		Steps:      req.Steps,
		Elapsed:    time.Since(started),
		FinalLoss:  losses,
		RewardLoss: rewardLoss,
	}, nil
}

// trainLoop holds the wired components of one run.
type trainLoop struct {
	shape   world.Shape
	dyn     *world.LinearRSSM
	encoder *world.MLPEncoder
	engine  *imagine.Engine

	actor  *policy.GaussianActor
	critic *policy.ValueCritic
	target *policy.ValueCritic

	explorer *agent.Explorer
	achiever *agent.Achiever

	rewardModel reward.Trainable
	goalReward  reward.Model
	stepReward  func(lr float64)

	// Intrinsic curiosity source for the explorer; nil in achiever mode,
	// identical to rewardModel when the ensemble reward was requested.
	intrinsic *reward.EnsembleReward
}

func buildLoop(rng *rand.Rand, src *exprand.Rand, shape world.Shape, req TrainRequest) (*trainLoop, error) {
	dyn, err := world.NewLinearRSSM(rng, shape)
	if err != nil {
		return nil, err
	}
	encoder, err := world.NewMLPEncoder(rng, shape, req.HiddenDim)
	if err != nil {
		return nil, err
	}
	engine, err := imagine.NewEngine(dyn, shape)
	if err != nil {
		return nil, err
	}
	actor, err := policy.NewGaussianActor(rng, src, shape.ZWidth(), shape.HDim, shape.ActionDim, req.HiddenDim, req.MinStd)
	if err != nil {
		return nil, err
	}
	critic, err := policy.NewValueCritic(rng, shape.ZWidth(), shape.HDim, req.HiddenDim)
	if err != nil {
		return nil, err
	}
	target, err := policy.NewValueCritic(rng, shape.ZWidth(), shape.HDim, req.HiddenDim)
	if err != nil {
		return nil, err
	}

	loop := &trainLoop{
		shape:   shape,
		dyn:     dyn,
		encoder: encoder,
		engine:  engine,
		actor:   actor,
		critic:  critic,
		target:  target,
	}

	switch req.RewardModel {
	case RewardTemporal:
		est, err := reward.NewDistanceNet(rng, shape.EmbDim, req.HiddenDim)
		if err != nil {
			return nil, err
		}
		temporal, err := reward.NewTemporalDistanceReward(shape, encoder, est)
		if err != nil {
			return nil, err
		}
		loop.rewardModel = temporal
		loop.goalReward = temporal
		loop.stepReward = est.Step
	case RewardCosine:
		cosine, err := reward.NewCosineReward(shape, dyn)
		if err != nil {
			return nil, err
		}
		loop.rewardModel = cosine
		loop.goalReward = cosine
		loop.stepReward = func(float64) {}
	case RewardEnsemble:
		ensemble, err := reward.NewEnsembleReward(rng, shape, encoder, req.EnsembleHeads, req.HiddenDim)
		if err != nil {
			return nil, err
		}
		loop.rewardModel = ensemble
		loop.stepReward = ensemble.Step
	}

	switch req.Mode {
	case ModeExplorer:
		if req.RewardModel == RewardEnsemble {
			loop.intrinsic = loop.rewardModel.(*reward.EnsembleReward)
		} else {
			// Goal rewards are not intrinsic; the explorer always follows
			// ensemble disagreement while the goal reward trains alongside.
			ensemble, err := reward.NewEnsembleReward(rng, shape, encoder, req.EnsembleHeads, req.HiddenDim)
			if err != nil {
				return nil, err
			}
			loop.intrinsic = ensemble
		}
		explorer, err := agent.NewExplorer(agentConfig(shape, req), dyn, actor, critic, target, loop.intrinsic)
		if err != nil {
			return nil, err
		}
		loop.explorer = explorer
	case ModeAchiever:
		achiever, err := agent.NewAchiever(agentConfig(shape, req), dyn, actor, critic, target, loop.goalReward)
		if err != nil {
			return nil, err
		}
		loop.achiever = achiever
	}
	return loop, nil
}

func agentConfig(shape world.Shape, req TrainRequest) agent.Config {
	return agent.Config{
		Shape:        shape,
		Horizon:      req.Horizon,
		Discount:     req.Discount,
		Lambda:       req.Lambda,
		EntropyScale: req.EntropyScale,
	}
}

// sampleStates draws a fresh batch of latent states from the reference
// world: random features pushed through the posterior so z rows live on
// the class simplices.
func (l *trainLoop) sampleStates(rng *rand.Rand, batch int) (*mat.Dense, *mat.Dense, error) {
	h := mat.NewDense(batch, l.shape.HDim, nil)
	emb := mat.NewDense(batch, l.shape.EmbDim, nil)
	for r := 0; r < batch; r++ {
		hRow := h.RawRowView(r)
		for i := range hRow {
			hRow[i] = rng.NormFloat64()
		}
		embRow := emb.RawRowView(r)
		for i := range embRow {
			embRow[i] = rng.NormFloat64()
		}
	}
	z, err := l.dyn.PosteriorMean(h, emb)
	if err != nil {
		return nil, nil, err
	}
	return z, h, nil
}

// trainRewardModel rolls an imagined sequence and fits the reward model to
// it, then applies one optimizer step to the model's parameters.
func (l *trainLoop) trainRewardModel(rng *rand.Rand, req TrainRequest) (float64, error) {
	initZ, initH, err := l.sampleStates(rng, req.BatchSize)
	if err != nil {
		return 0, err
	}
	tr, err := l.engine.Rollout(l.actor, initZ, initH, req.Horizon)
	if err != nil {
		return 0, err
	}
	spec := reward.TrainSpec{
		NumPositives:      req.NumPositives,
		NegSamplingFactor: req.NegSamplingFactor,
		Horizon:           req.Horizon,
		BatchSize:         req.BatchSize,
		BatchLength:       req.BatchLength,
	}
	loss, err := l.rewardModel.Train(rng, tr.Zs, tr.Hs, spec)
	if err != nil {
		return 0, err
	}
	l.stepReward(req.RewardLR)

	if l.intrinsic != nil && reward.Trainable(l.intrinsic) != l.rewardModel {
		intrinsicLoss, err := l.intrinsic.Train(rng, tr.Zs, tr.Hs, spec)
		if err != nil {
			return 0, err
		}
		l.intrinsic.Step(req.RewardLR)
		loss += intrinsicLoss
	}
	return loss, nil
}

func (l *trainLoop) trainPolicy(rng *rand.Rand, req TrainRequest) (agent.Losses, error) {
	initZ, initH, err := l.sampleStates(rng, req.BatchSize)
	if err != nil {
		return agent.Losses{}, err
	}
	if l.explorer != nil {
		return l.explorer.Train(initZ, initH)
	}

	// Achiever goals are embeddings of independently sampled states.
	goalZ, goalH, err := l.sampleStates(rng, req.BatchSize)
	if err != nil {
		return agent.Losses{}, err
	}
	goalEmb, err := l.encoder.EmbedMean(goalZ, goalH)
	if err != nil {
		return agent.Losses{}, err
	}
	return l.achiever.Train(initZ, initH, goalEmb)
}

func (l *trainLoop) stepOptimizers(req TrainRequest) {
	l.actor.Step(req.ActorLR)
	l.critic.Step(req.CriticLR)
}

func (l *trainLoop) syncTarget() error {
	if l.explorer != nil {
		return l.explorer.SyncTargetCritic()
	}
	return l.achiever.SyncTargetCritic()
}

// Runs lists stored runs, newest last, capped at limit when limit > 0.
func Runs(ctx context.Context, store storage.Store, limit int) ([]model.RunRecord, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	return runs, nil
}

// Metrics returns the persisted per-step metrics for a run.
func Metrics(ctx context.Context, store storage.Store, runID string) ([]model.StepMetrics, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	metrics, ok, err := store.GetMetrics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no metrics for run %s", runID)
	}
	return metrics, nil
}
