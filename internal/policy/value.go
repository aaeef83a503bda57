package policy

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/nn"
)

// ValueCritic predicts the mean of a unit-variance Normal value
// distribution for each latent state.
type ValueCritic struct {
	zWidth int
	hDim   int
	net    *nn.MLP
}

func NewValueCritic(rng *rand.Rand, zWidth, hDim, hiddenDim int) (*ValueCritic, error) {
	if zWidth <= 0 || hDim <= 0 {
		return nil, fmt.Errorf("dims must be > 0: zWidth=%d hDim=%d", zWidth, hDim)
	}
	net, err := nn.NewMLP(rng, []int{zWidth + hDim, hiddenDim, 1}, "tanh", "identity")
	if err != nil {
		return nil, err
	}
	return &ValueCritic{zWidth: zWidth, hDim: hDim, net: net}, nil
}

func (c *ValueCritic) Value(z, h *mat.Dense) ([]float64, error) {
	batch, err := c.checkBatch(z, h)
	if err != nil {
		return nil, err
	}
	values := make([]float64, batch)
	input := make([]float64, c.zWidth+c.hDim)
	for r := 0; r < batch; r++ {
		n := copy(input, z.RawRowView(r))
		copy(input[n:], h.RawRowView(r))
		out, err := c.net.Forward(input)
		if err != nil {
			return nil, err
		}
		values[r] = out[0]
	}
	return values, nil
}

func (c *ValueCritic) AccumulateGrad(z, h *mat.Dense, valueGrad []float64) error {
	batch, err := c.checkBatch(z, h)
	if err != nil {
		return err
	}
	if len(valueGrad) != batch {
		return fmt.Errorf("value grad length mismatch: got=%d want=%d", len(valueGrad), batch)
	}
	input := make([]float64, c.zWidth+c.hDim)
	for r := 0; r < batch; r++ {
		n := copy(input, z.RawRowView(r))
		copy(input[n:], h.RawRowView(r))
		if err := c.net.AccumulateGrad(input, []float64{valueGrad[r]}); err != nil {
			return err
		}
	}
	return nil
}

func (c *ValueCritic) Step(learningRate float64) {
	c.net.Step(learningRate)
}

func (c *ValueCritic) Parameters() []float64 {
	return c.net.Parameters()
}

func (c *ValueCritic) SetParameters(params []float64) error {
	return c.net.SetParameters(params)
}

func (c *ValueCritic) checkBatch(z, h *mat.Dense) (int, error) {
	zr, zc := z.Dims()
	hr, hc := h.Dims()
	if zr != hr {
		return 0, fmt.Errorf("latent batch mismatch: z rows=%d h rows=%d", zr, hr)
	}
	if zc != c.zWidth || hc != c.hDim {
		return 0, fmt.Errorf("latent width mismatch: z=%d/%d h=%d/%d", zc, c.zWidth, hc, c.hDim)
	}
	return zr, nil
}
