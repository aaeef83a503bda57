package storage

import (
	"context"
	"sort"
	"sync"

	"oneiros/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	metrics     map[string][]model.StepMetrics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.metrics = make(map[string][]model.StepMetrics)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedUnix != runs[j].CreatedUnix {
			return runs[i].CreatedUnix < runs[j].CreatedUnix
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *MemoryStore) AppendMetrics(_ context.Context, runID string, metrics []model.StepMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics[runID] = append(s.metrics[runID], metrics...)
	return nil
}

func (s *MemoryStore) GetMetrics(_ context.Context, runID string) ([]model.StepMetrics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics, ok := s.metrics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.StepMetrics, len(metrics))
	copy(copied, metrics)
	return copied, true, nil
}
