package world

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/nn"
)

// MLPEncoder maps latent states to embedding means through a small MLP.
// It deliberately exposes no gradient hook: embeddings are always detached
// from the encoder's parameters in this core.
type MLPEncoder struct {
	shape Shape
	net   *nn.MLP
}

func NewMLPEncoder(rng *rand.Rand, shape Shape, hiddenDim int) (*MLPEncoder, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if hiddenDim <= 0 {
		return nil, fmt.Errorf("hidden dim must be > 0, got %d", hiddenDim)
	}
	net, err := nn.NewMLP(rng, []int{shape.ZWidth() + shape.HDim, hiddenDim, shape.EmbDim}, "tanh", "identity")
	if err != nil {
		return nil, err
	}
	return &MLPEncoder{shape: shape, net: net}, nil
}

func (e *MLPEncoder) EmbedMean(z, h *mat.Dense) (*mat.Dense, error) {
	batch, err := CheckStateBatch(z, h, e.shape)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(batch, e.shape.EmbDim, nil)
	input := make([]float64, e.shape.ZWidth()+e.shape.HDim)
	for r := 0; r < batch; r++ {
		n := copy(input, z.RawRowView(r))
		copy(input[n:], h.RawRowView(r))
		emb, err := e.net.Forward(input)
		if err != nil {
			return nil, err
		}
		copy(out.RawRowView(r), emb)
	}
	return out, nil
}
