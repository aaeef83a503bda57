package reward

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/nn"
)

// DistanceNet is the reference distance estimator: an MLP over the
// concatenated pair of embeddings with a sigmoid output, so predictions
// stay in (0,1) like the temporal-distance targets.
type DistanceNet struct {
	embDim int
	net    *nn.MLP
}

func NewDistanceNet(rng *rand.Rand, embDim, hiddenDim int) (*DistanceNet, error) {
	if embDim <= 0 {
		return nil, fmt.Errorf("embedding dim must be > 0, got %d", embDim)
	}
	net, err := nn.NewMLP(rng, []int{2 * embDim, hiddenDim, 1}, "relu", "sigmoid")
	if err != nil {
		return nil, err
	}
	return &DistanceNet{embDim: embDim, net: net}, nil
}

func (d *DistanceNet) Distance(current, goal *mat.Dense) ([]float64, error) {
	batch, err := d.checkPair(current, goal)
	if err != nil {
		return nil, err
	}
	out := make([]float64, batch)
	input := make([]float64, 2*d.embDim)
	for r := 0; r < batch; r++ {
		n := copy(input, current.RawRowView(r))
		copy(input[n:], goal.RawRowView(r))
		pred, err := d.net.Forward(input)
		if err != nil {
			return nil, err
		}
		out[r] = pred[0]
	}
	return out, nil
}

func (d *DistanceNet) AccumulateGrad(current, goal *mat.Dense, distanceGrad []float64) error {
	batch, err := d.checkPair(current, goal)
	if err != nil {
		return err
	}
	if len(distanceGrad) != batch {
		return fmt.Errorf("distance grad length mismatch: got=%d want=%d", len(distanceGrad), batch)
	}
	input := make([]float64, 2*d.embDim)
	for r := 0; r < batch; r++ {
		n := copy(input, current.RawRowView(r))
		copy(input[n:], goal.RawRowView(r))
		if err := d.net.AccumulateGrad(input, []float64{distanceGrad[r]}); err != nil {
			return err
		}
	}
	return nil
}

func (d *DistanceNet) Step(learningRate float64) {
	d.net.Step(learningRate)
}

func (d *DistanceNet) checkPair(current, goal *mat.Dense) (int, error) {
	cr, cc := current.Dims()
	gr, gc := goal.Dims()
	if cr != gr {
		return 0, fmt.Errorf("pair batch mismatch: current rows=%d goal rows=%d", cr, gr)
	}
	if cc != d.embDim || gc != d.embDim {
		return 0, fmt.Errorf("embedding width mismatch: current=%d goal=%d want=%d", cc, gc, d.embDim)
	}
	return cr, nil
}
