package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"oneiros/internal/model"
	"oneiros/internal/storage"
	oneiros "oneiros/pkg/oneiros"
)

const defaultDBPath = "oneiros.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "metrics":
		return runMetrics(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func openStore(ctx context.Context, kind, dbPath string) (storage.Store, error) {
	store, err := storage.NewStore(kind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}
	return store, nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional train config JSON path")
	mode := fs.String("mode", oneiros.ModeExplorer, "training mode: explorer|achiever")
	rewardModel := fs.String("reward", oneiros.RewardTemporal, "reward model: temporal|cosine|ensemble")
	seed := fs.Int64("seed", 1, "rng seed")
	steps := fs.Int("steps", 100, "training steps")
	horizon := fs.Int("horizon", 15, "imagination horizon")
	batchSize := fs.Int("batch", 16, "imagined batch size (flattened sub-trajectories)")
	batchLength := fs.Int("batch-length", 4, "sub-trajectories per original episode")
	slowCritic := fs.Int("slow-critic-update", 100, "target critic hard-sync cadence in steps")
	zDim := fs.Int("z-dim", 8, "stochastic latent categorical count")
	numClasses := fs.Int("num-classes", 8, "classes per stochastic categorical")
	hDim := fs.Int("h-dim", 32, "deterministic latent width")
	embDim := fs.Int("emb-dim", 16, "embedding width")
	actionDim := fs.Int("action-dim", 4, "action width")
	hiddenDim := fs.Int("hidden-dim", 64, "hidden layer width for all MLPs")
	discount := fs.Float64("discount", 0.99, "reward discount")
	lambda := fs.Float64("lambda", 0.95, "lambda-return mixing factor")
	entropyScale := fs.Float64("entropy-scale", 1e-4, "actor entropy bonus scale")
	minStd := fs.Float64("min-std", 0.1, "actor minimum action stddev")
	actorLR := fs.Float64("actor-lr", 8e-5, "actor learning rate")
	criticLR := fs.Float64("critic-lr", 8e-5, "critic learning rate")
	rewardLR := fs.Float64("reward-lr", 3e-4, "reward model learning rate")
	numPositives := fs.Int("num-positives", 20, "positive pairs per contrastive batch")
	negFactor := fs.Float64("neg-sampling-factor", 0.3, "negatives per positive for the temporal reward")
	ensembleHeads := fs.Int("ensemble-heads", 5, "prediction heads for the ensemble reward")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultTrainRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = oneiros.TrainRequest{
			Mode:              *mode,
			RewardModel:       *rewardModel,
			Seed:              *seed,
			Steps:             *steps,
			Horizon:           *horizon,
			BatchSize:         *batchSize,
			BatchLength:       *batchLength,
			SlowCriticUpdate:  *slowCritic,
			ZDim:              *zDim,
			NumClasses:        *numClasses,
			HDim:              *hDim,
			EmbDim:            *embDim,
			ActionDim:         *actionDim,
			HiddenDim:         *hiddenDim,
			Discount:          *discount,
			Lambda:            *lambda,
			EntropyScale:      *entropyScale,
			MinStd:            *minStd,
			ActorLR:           *actorLR,
			CriticLR:          *criticLR,
			RewardLR:          *rewardLR,
			NumPositives:      *numPositives,
			NegSamplingFactor: *negFactor,
			EnsembleHeads:     *ensembleHeads,
		}
	} else {
		// Flags set explicitly on the command line win over the config file.
		overrideFromFlags(&req, setFlags, map[string]any{
			"mode": *mode, "reward": *rewardModel, "seed": *seed,
			"steps": *steps, "horizon": *horizon, "batch": *batchSize,
			"batch-length": *batchLength, "slow-critic-update": *slowCritic,
			"z-dim": *zDim, "num-classes": *numClasses, "h-dim": *hDim,
			"emb-dim": *embDim, "action-dim": *actionDim, "hidden-dim": *hiddenDim,
			"discount": *discount, "lambda": *lambda, "entropy-scale": *entropyScale,
			"min-std": *minStd, "actor-lr": *actorLR, "critic-lr": *criticLR,
			"reward-lr": *rewardLR, "num-positives": *numPositives,
			"neg-sampling-factor": *negFactor, "ensemble-heads": *ensembleHeads,
		})
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	summary, err := oneiros.Run(ctx, req, store)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s mode=%s reward=%s steps=%s elapsed=%s\n",
		summary.RunID, summary.Mode, summary.Reward,
		humanize.Comma(int64(summary.Steps)), summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("final actor_loss=%.6f critic_loss=%.6f reward_loss=%.6f mean_reward=%.6f\n",
		summary.FinalLoss.Actor, summary.FinalLoss.Critic, summary.RewardLoss, summary.FinalLoss.MeanReward)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum runs to list")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	runs, err := oneiros.Runs(ctx, store, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("run_id=%s mode=%s reward=%s seed=%d steps=%s created=%s\n",
			run.ID, run.Mode, run.RewardModel, run.Seed,
			humanize.Comma(int64(run.Steps)), humanize.Time(time.Unix(run.CreatedUnix, 0)))
	}
	return nil
}

func runMetrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	limit := fs.Int("limit", 0, "print only the last N steps (0 prints all)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("metrics requires --run-id")
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	metrics, err := oneiros.Metrics(ctx, store, *runID)
	if err != nil {
		return err
	}
	if *limit > 0 && len(metrics) > *limit {
		metrics = metrics[len(metrics)-*limit:]
	}
	for _, m := range metrics {
		fmt.Printf("step=%d actor_loss=%.6f critic_loss=%.6f reward_loss=%.6f mean_reward=%.6f\n",
			m.Step, m.ActorLoss, m.CriticLoss, m.RewardLoss, m.MeanReward)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "export output directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	if *latest {
		runs, err := oneiros.Runs(ctx, store, 0)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return errors.New("no runs available to export")
		}
		*runID = runs[len(runs)-1].ID
	}

	metrics, err := oneiros.Metrics(ctx, store, *runID)
	if err != nil {
		return err
	}

	path, err := writeMetricsCSV(*outDir, *runID, metrics)
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s rows=%s to=%s\n", *runID, humanize.Comma(int64(len(metrics))), path)
	return nil
}

func writeMetricsCSV(outDir, runID string, metrics []model.StepMetrics) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"step", "actor_loss", "critic_loss", "reward_loss", "mean_reward"}); err != nil {
		return "", err
	}
	for _, m := range metrics {
		record := []string{
			strconv.Itoa(m.Step),
			strconv.FormatFloat(m.ActorLoss, 'g', -1, 64),
			strconv.FormatFloat(m.CriticLoss, 'g', -1, 64),
			strconv.FormatFloat(m.RewardLoss, 'g', -1, 64),
			strconv.FormatFloat(m.MeanReward, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: oneirosctl <init|train|runs|metrics|export> [flags]", msg)
}
