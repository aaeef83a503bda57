// Package returns computes multi-step return targets over imagined
// trajectories.
package returns

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LambdaTarget blends n-step bootstrapped returns with exponential
// weighting lambda over a horizon x batch grid. Row t holds timestep t.
// The last step bootstraps from its own target value:
//
//	target[H-1] = r[H-1] + discount*v[H-1]
//	target[t]   = r[t] + discount*((1-lambda)*v[t+1] + lambda*target[t+1])
//
// lambda = 0 reduces to one-step TD targets, lambda = 1 to the discounted
// return bootstrapped by the final value.
func LambdaTarget(rewards *mat.Dense, discount float64, values *mat.Dense, lambda float64) (*mat.Dense, error) {
	if rewards == nil || values == nil {
		return nil, fmt.Errorf("rewards and values are required")
	}
	rr, rc := rewards.Dims()
	vr, vc := values.Dims()
	if rr != vr || rc != vc {
		return nil, fmt.Errorf("reward/value shape mismatch: rewards=%dx%d values=%dx%d", rr, rc, vr, vc)
	}
	if rr < 1 {
		return nil, fmt.Errorf("horizon must be >= 1, got %d", rr)
	}
	if discount < 0 || discount > 1 {
		return nil, fmt.Errorf("discount must be in [0,1], got %f", discount)
	}
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("lambda must be in [0,1], got %f", lambda)
	}

	horizon, batch := rr, rc
	targets := mat.NewDense(horizon, batch, nil)
	last := targets.RawRowView(horizon - 1)
	for b := 0; b < batch; b++ {
		last[b] = rewards.At(horizon-1, b) + discount*values.At(horizon-1, b)
	}
	for t := horizon - 2; t >= 0; t-- {
		row := targets.RawRowView(t)
		next := targets.RawRowView(t + 1)
		for b := 0; b < batch; b++ {
			bootstrap := (1-lambda)*values.At(t+1, b) + lambda*next[b]
			row[b] = rewards.At(t, b) + discount*bootstrap
		}
	}
	return targets, nil
}
