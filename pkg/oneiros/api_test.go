package oneiros

import (
	"context"
	"testing"

	"oneiros/internal/storage"
)

func smallRequest() TrainRequest {
	return TrainRequest{
		Seed:             1,
		Steps:            3,
		Horizon:          3,
		BatchSize:        4,
		BatchLength:      2,
		SlowCriticUpdate: 2,
		ZDim:             2,
		NumClasses:       3,
		HDim:             4,
		EmbDim:           3,
		ActionDim:        2,
		HiddenDim:        8,
		NumPositives:     5,
	}
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return store
}

func TestRunExplorerTemporalEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	summary, err := Run(ctx, smallRequest(), store)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
	if summary.Mode != ModeExplorer || summary.Reward != RewardTemporal {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Steps != 3 {
		t.Fatalf("steps: got=%d want=3", summary.Steps)
	}

	run, ok, err := store.GetRun(ctx, summary.RunID)
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.Mode != ModeExplorer || run.Seed != 1 {
		t.Fatalf("unexpected run record: %+v", run)
	}

	metrics, err := Metrics(ctx, store, summary.RunID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("metric count: got=%d want=3", len(metrics))
	}
	for i, m := range metrics {
		if m.Step != i+1 {
			t.Fatalf("metric %d step: got=%d want=%d", i, m.Step, i+1)
		}
	}
}

func TestRunAchieverModes(t *testing.T) {
	for _, rewardModel := range []string{RewardTemporal, RewardCosine} {
		req := smallRequest()
		req.Mode = ModeAchiever
		req.RewardModel = rewardModel

		summary, err := Run(context.Background(), req, newTestStore(t))
		if err != nil {
			t.Fatalf("%s: run: %v", rewardModel, err)
		}
		if summary.Reward != rewardModel {
			t.Fatalf("%s: unexpected summary: %+v", rewardModel, summary)
		}
		if rewardModel == RewardCosine && summary.RewardLoss != 0 {
			t.Fatalf("cosine reward loss must stay 0, got %f", summary.RewardLoss)
		}
	}
}

func TestRunExplorerEnsemble(t *testing.T) {
	req := smallRequest()
	req.RewardModel = RewardEnsemble
	req.EnsembleHeads = 2

	summary, err := Run(context.Background(), req, newTestStore(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RewardLoss <= 0 {
		t.Fatalf("ensemble reward loss should be positive, got %f", summary.RewardLoss)
	}
}

func TestRunValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TrainRequest)
	}{
		{"unknown mode", func(r *TrainRequest) { r.Mode = "dreamer" }},
		{"unknown reward", func(r *TrainRequest) { r.RewardModel = "sparse" }},
		{"achiever with ensemble", func(r *TrainRequest) {
			r.Mode = ModeAchiever
			r.RewardModel = RewardEnsemble
		}},
		{"batch not multiple of batch length", func(r *TrainRequest) {
			r.BatchSize = 5
			r.BatchLength = 2
		}},
		{"single episode group with negatives", func(r *TrainRequest) {
			r.BatchSize = 4
			r.BatchLength = 4
			r.NegSamplingFactor = 1
		}},
	}
	for _, tc := range cases {
		req := smallRequest()
		tc.mutate(&req)
		if _, err := Run(context.Background(), req, newTestStore(t)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestRunRequiresStore(t *testing.T) {
	if _, err := Run(context.Background(), smallRequest(), nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, smallRequest(), newTestStore(t)); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunsLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		req := smallRequest()
		req.Steps = 1
		req.Seed = int64(i)
		if _, err := Run(ctx, req, store); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	runs, err := Runs(ctx, store, 2)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("run count: got=%d want=2", len(runs))
	}

	all, err := Runs(ctx, store, 0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("run count: got=%d want=3", len(all))
	}
}

func TestMetricsMissingRun(t *testing.T) {
	if _, err := Metrics(context.Background(), newTestStore(t), "missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}
	if _, err := Metrics(context.Background(), newTestStore(t), ""); err == nil {
		t.Fatal("expected error for empty run id")
	}
}
