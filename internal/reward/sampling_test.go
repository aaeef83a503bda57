package reward

import (
	"math/rand"
	"testing"
)

func TestFutureGoalIndexesEnumeration(t *testing.T) {
	const horizon, batchSize = 5, 4
	current, goal := futureGoalIndexes(horizon, batchSize)

	wantLen := horizon * (horizon + 1) / 2 * batchSize
	if len(current) != wantLen || len(goal) != wantLen {
		t.Fatalf("pair count: got=(%d,%d) want=%d", len(current), len(goal), wantLen)
	}
	for i := range current {
		if goal[i].time < current[i].time {
			t.Fatalf("pair %d violates temporal order: cur=%d goal=%d", i, current[i].time, goal[i].time)
		}
		if goal[i].batch != current[i].batch {
			t.Fatalf("pair %d crosses trajectories: cur=%d goal=%d", i, current[i].batch, goal[i].batch)
		}
	}
}

func TestPositiveLabelMonotonicity(t *testing.T) {
	// For fixed i and j <= k, the label for (i,k) must be (k-i)/H and be
	// >= the label for (i,j).
	const horizon = 6
	label := func(cur, goal int) float64 {
		return float64(goal-cur) / float64(horizon)
	}
	for i := 0; i < horizon; i++ {
		for j := i; j < horizon; j++ {
			for k := j; k < horizon; k++ {
				if label(i, k) < label(i, j) {
					t.Fatalf("label(%d,%d)=%f < label(%d,%d)=%f", i, k, label(i, k), i, j, label(i, j))
				}
			}
		}
	}
	if got := label(1, 4); got != 0.5 {
		t.Fatalf("label(1,4): got=%f want=0.5", got)
	}
}

func TestSamplePositivePairsWithoutReplacement(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	current, goal, err := samplePositivePairs(rng, 5, 4, 6)
	if err != nil {
		t.Fatalf("sample positives: %v", err)
	}
	if len(current) != 6 || len(goal) != 6 {
		t.Fatalf("pair count: got=(%d,%d) want=6", len(current), len(goal))
	}
	seen := make(map[[4]int]bool)
	for i := range current {
		key := [4]int{current[i].time, current[i].batch, goal[i].time, goal[i].batch}
		if seen[key] {
			t.Fatalf("pair %v drawn twice", key)
		}
		seen[key] = true
	}

	if _, _, err := samplePositivePairs(rng, 1, 1, 5); err == nil {
		t.Fatal("expected error when drawing more pairs than exist")
	}
}

func TestSampleNegativePairsCrossEpisode(t *testing.T) {
	const horizon, batchSize, batchLength = 5, 4, 2
	rng := rand.New(rand.NewSource(23))

	current, goal, err := sampleNegativePairs(rng, 50, horizon, batchSize, batchLength)
	if err != nil {
		t.Fatalf("sample negatives: %v", err)
	}
	for i := range current {
		curGroup := current[i].batch / batchLength
		goalGroup := goal[i].batch / batchLength
		if curGroup == goalGroup {
			t.Fatalf("pair %d shares episode group %d", i, curGroup)
		}
		if current[i].time < 0 || current[i].time >= horizon || goal[i].time < 0 || goal[i].time >= horizon {
			t.Fatalf("pair %d time out of range: cur=%d goal=%d", i, current[i].time, goal[i].time)
		}
	}
}

func TestSampleNegativePairsNeedsTwoEpisodeGroups(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, _, err := sampleNegativePairs(rng, 1, 5, 2, 2); err == nil {
		t.Fatal("expected error for a single episode group")
	}
}

func TestSamplingIsDeterministicPerSeed(t *testing.T) {
	a1, b1, err := samplePositivePairs(rand.New(rand.NewSource(7)), 5, 4, 6)
	if err != nil {
		t.Fatalf("sample positives: %v", err)
	}
	a2, b2, err := samplePositivePairs(rand.New(rand.NewSource(7)), 5, 4, 6)
	if err != nil {
		t.Fatalf("sample positives: %v", err)
	}
	for i := range a1 {
		if a1[i] != a2[i] || b1[i] != b2[i] {
			t.Fatalf("pair %d differs across identical seeds", i)
		}
	}
}
