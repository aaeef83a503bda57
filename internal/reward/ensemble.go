package reward

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/nn"
	"oneiros/internal/world"
)

// EnsembleReward is the Explorer's intrinsic signal: K predictor heads
// each map a latent state to a predicted embedding, and the reward is the
// heads' disagreement (mean per-dimension population variance). States
// the heads agree on are familiar; disagreement marks novelty.
type EnsembleReward struct {
	shape   world.Shape
	encoder world.Encoder
	heads   []*nn.MLP
}

func NewEnsembleReward(rng *rand.Rand, shape world.Shape, encoder world.Encoder, numHeads, hiddenDim int) (*EnsembleReward, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if numHeads < 2 {
		return nil, fmt.Errorf("ensemble needs >= 2 heads, got %d", numHeads)
	}
	heads := make([]*nn.MLP, numHeads)
	for i := range heads {
		head, err := nn.NewMLP(rng, []int{shape.ZWidth() + shape.HDim, hiddenDim, shape.EmbDim}, "relu", "identity")
		if err != nil {
			return nil, err
		}
		heads[i] = head
	}
	return &EnsembleReward{shape: shape, encoder: encoder, heads: heads}, nil
}

func (m *EnsembleReward) Rewards(z, h *mat.Dense) ([]float64, error) {
	batch, err := world.CheckStateBatch(z, h, m.shape)
	if err != nil {
		return nil, err
	}

	preds := make([][]float64, len(m.heads))
	input := make([]float64, m.shape.ZWidth()+m.shape.HDim)
	rewards := make([]float64, batch)
	for r := 0; r < batch; r++ {
		n := copy(input, z.RawRowView(r))
		copy(input[n:], h.RawRowView(r))
		for k, head := range m.heads {
			out, err := head.Forward(input)
			if err != nil {
				return nil, err
			}
			preds[k] = out
		}
		rewards[r] = disagreement(preds, m.shape.EmbDim)
	}
	return rewards, nil
}

// Train regresses every head onto the detached encoder embedding of each
// state in the sequence and returns the summed MSE loss. The sampling
// fields of spec are unused here; only the sequence geometry matters.
func (m *EnsembleReward) Train(_ *rand.Rand, zs, hs []*mat.Dense, spec TrainSpec) (float64, error) {
	if err := checkSequence(zs, hs, spec.Horizon, spec.BatchSize); err != nil {
		return 0, err
	}

	n := float64(spec.Horizon * spec.BatchSize * m.shape.EmbDim)
	input := make([]float64, m.shape.ZWidth()+m.shape.HDim)
	outGrad := make([]float64, m.shape.EmbDim)
	loss := 0.0
	for t := 0; t < spec.Horizon; t++ {
		target, err := m.encoder.EmbedMean(zs[t], hs[t])
		if err != nil {
			return 0, err
		}
		for b := 0; b < spec.BatchSize; b++ {
			c := copy(input, zs[t].RawRowView(b))
			copy(input[c:], hs[t].RawRowView(b))
			targetRow := target.RawRowView(b)
			for _, head := range m.heads {
				pred, err := head.Forward(input)
				if err != nil {
					return 0, err
				}
				for d := range pred {
					diff := pred[d] - targetRow[d]
					loss += diff * diff / n
					outGrad[d] = 2 * diff / n
				}
				if err := head.AccumulateGrad(input, outGrad); err != nil {
					return 0, err
				}
			}
		}
	}
	return loss, nil
}

// Step applies accumulated gradients to every head.
func (m *EnsembleReward) Step(learningRate float64) {
	for _, head := range m.heads {
		head.Step(learningRate)
	}
}

// disagreement is the mean over embedding dimensions of the population
// variance across head predictions.
func disagreement(preds [][]float64, embDim int) float64 {
	k := float64(len(preds))
	total := 0.0
	for d := 0; d < embDim; d++ {
		mean := 0.0
		for _, p := range preds {
			mean += p[d]
		}
		mean /= k
		variance := 0.0
		for _, p := range preds {
			diff := p[d] - mean
			variance += diff * diff
		}
		total += variance / k
	}
	return total / float64(embDim)
}
