package reward

import (
	"fmt"
	"math/rand"
)

// indexPair addresses one latent state on the (time, batch) grid.
type indexPair struct {
	time  int
	batch int
}

// futureGoalIndexes enumerates every (current, goal) pair with
// goal.time >= current.time, for all batch columns. Pair i of the two
// slices belongs together.
func futureGoalIndexes(horizon, batchSize int) (current, goal []indexPair) {
	n := horizon * (horizon + 1) / 2 * batchSize
	current = make([]indexPair, 0, n)
	goal = make([]indexPair, 0, n)
	for curT := 0; curT < horizon; curT++ {
		for goalT := curT; goalT < horizon; goalT++ {
			for b := 0; b < batchSize; b++ {
				current = append(current, indexPair{time: curT, batch: b})
				goal = append(goal, indexPair{time: goalT, batch: b})
			}
		}
	}
	return current, goal
}

// samplePositivePairs draws n same-trajectory pairs uniformly without
// replacement from the full future-goal enumeration.
func samplePositivePairs(rng *rand.Rand, horizon, batchSize, n int) (current, goal []indexPair, err error) {
	allCurrent, allGoal := futureGoalIndexes(horizon, batchSize)
	if n > len(allCurrent) {
		return nil, nil, fmt.Errorf("cannot draw %d positives from %d candidate pairs", n, len(allCurrent))
	}
	perm := rng.Perm(len(allCurrent))
	current = make([]indexPair, n)
	goal = make([]indexPair, n)
	for i := 0; i < n; i++ {
		current[i] = allCurrent[perm[i]]
		goal[i] = allGoal[perm[i]]
	}
	return current, goal, nil
}

// sampleNegativePairs draws n pairs with uniformly random coordinates on
// both sides, constrained so the goal's batch index belongs to a different
// episode group than the current one. Episode membership is the integer
// quotient batch/batchLength. Goal times are unconstrained relative to
// current times; the cross-episode constraint is the sole signal.
func sampleNegativePairs(rng *rand.Rand, n, horizon, batchSize, batchLength int) (current, goal []indexPair, err error) {
	if batchSize/batchLength < 2 {
		return nil, nil, fmt.Errorf("negative sampling needs >= 2 episode groups: batch size=%d batch length=%d", batchSize, batchLength)
	}
	current = make([]indexPair, n)
	goal = make([]indexPair, n)
	candidates := make([]int, 0, batchSize)
	for i := 0; i < n; i++ {
		current[i] = indexPair{time: rng.Intn(horizon), batch: rng.Intn(batchSize)}
		curGroup := current[i].batch / batchLength
		candidates = candidates[:0]
		for b := 0; b < batchSize; b++ {
			if b/batchLength != curGroup {
				candidates = append(candidates, b)
			}
		}
		goal[i] = indexPair{
			time:  rng.Intn(horizon),
			batch: candidates[rng.Intn(len(candidates))],
		}
	}
	return current, goal, nil
}
