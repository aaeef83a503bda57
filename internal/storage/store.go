package storage

import (
	"context"

	"oneiros/internal/model"
)

// Store persists training runs and their per-step metrics.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	AppendMetrics(ctx context.Context, runID string, metrics []model.StepMetrics) error
	GetMetrics(ctx context.Context, runID string) ([]model.StepMetrics, bool, error)
}
