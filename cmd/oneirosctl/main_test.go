package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oneiros/internal/model"
)

func TestRunRejectsMissingAndUnknownCommands(t *testing.T) {
	ctx := context.Background()
	if err := run(ctx, nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got: %v", err)
	}
	if err := run(ctx, []string{"evolve"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got: %v", err)
	}
}

func TestTrainCommandSmallRun(t *testing.T) {
	err := run(context.Background(), []string{"train",
		"-store", "memory",
		"-steps", "2",
		"-horizon", "3",
		"-batch", "4",
		"-batch-length", "2",
		"-z-dim", "2",
		"-num-classes", "3",
		"-h-dim", "4",
		"-emb-dim", "3",
		"-action-dim", "2",
		"-hidden-dim", "8",
		"-num-positives", "5",
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
}

func TestTrainCommandRejectsBadMode(t *testing.T) {
	err := run(context.Background(), []string{"train", "-store", "memory", "-mode", "dreamer"})
	if err == nil {
		t.Fatal("expected mode validation error")
	}
}

func TestExportCommandFlagValidation(t *testing.T) {
	ctx := context.Background()
	if err := run(ctx, []string{"export", "-store", "memory"}); err == nil {
		t.Fatal("expected error without --run-id or --latest")
	}
	if err := run(ctx, []string{"export", "-store", "memory", "-run-id", "x", "-latest"}); err == nil {
		t.Fatal("expected error with both --run-id and --latest")
	}
}

func TestMetricsCommandRequiresRunID(t *testing.T) {
	if err := run(context.Background(), []string{"metrics", "-store", "memory"}); err == nil {
		t.Fatal("expected error without --run-id")
	}
}

func TestWriteMetricsCSV(t *testing.T) {
	outDir := t.TempDir()
	metrics := []model.StepMetrics{
		{Step: 1, ActorLoss: -0.5, CriticLoss: 1.25, RewardLoss: 0.125, MeanReward: -0.25},
		{Step: 2, ActorLoss: -0.4, CriticLoss: 1.0, RewardLoss: 0.1, MeanReward: -0.2},
	}

	path, err := writeMetricsCSV(outDir, "run-1", metrics)
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if filepath.Base(path) != "run-1.csv" {
		t.Fatalf("unexpected file name: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("row count: got=%d want=3", len(records))
	}
	if records[0][0] != "step" || records[0][4] != "mean_reward" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "1" || records[1][2] != "1.25" {
		t.Fatalf("unexpected first row: %v", records[1])
	}
}
