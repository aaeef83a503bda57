package reward

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"oneiros/internal/world"
)

// echoDynamics decodes a goal embedding by tiling it across the z width,
// giving tests full control over the decoded goal state.
type echoDynamics struct {
	shape world.Shape
}

func (d *echoDynamics) Imagine(action, z, h *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	return h, z, nil
}

func (d *echoDynamics) PosteriorMean(h, emb *mat.Dense) (*mat.Dense, error) {
	batch, _ := h.Dims()
	out := mat.NewDense(batch, d.shape.ZWidth(), nil)
	for r := 0; r < batch; r++ {
		row := out.RawRowView(r)
		embRow := emb.RawRowView(r)
		for i := range row {
			row[i] = embRow[i%len(embRow)]
		}
	}
	return out, nil
}

func TestCosineRewardBounds(t *testing.T) {
	shape := testShape()
	model, err := NewCosineReward(shape, &echoDynamics{shape: shape})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	rng := rand.New(rand.NewSource(13))
	const batch = 8
	zData := make([]float64, batch*shape.ZWidth())
	gData := make([]float64, batch*shape.EmbDim)
	for i := range zData {
		zData[i] = rng.NormFloat64()
	}
	for i := range gData {
		gData[i] = rng.NormFloat64()
	}
	z := mat.NewDense(batch, shape.ZWidth(), zData)
	h := mat.NewDense(batch, shape.HDim, nil)
	goalEmb := mat.NewDense(batch, shape.EmbDim, gData)

	rewards, err := model.ComputeReward(z, h, goalEmb)
	if err != nil {
		t.Fatalf("compute reward: %v", err)
	}
	for i, r := range rewards {
		if r < -1-1e-9 || r > 1+1e-9 {
			t.Fatalf("reward %d outside [-1,1]: %f", i, r)
		}
	}
}

func TestCosineRewardIdenticalStatesIsOne(t *testing.T) {
	shape := testShape()
	dyn := &echoDynamics{shape: shape}
	model, err := NewCosineReward(shape, dyn)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	// Make the current state equal to the decoded goal state.
	goalEmb := mat.NewDense(1, shape.EmbDim, []float64{0.5, -1.2, 2.0})
	decoded, err := dyn.PosteriorMean(mat.NewDense(1, shape.HDim, nil), goalEmb)
	if err != nil {
		t.Fatalf("posterior: %v", err)
	}
	h := mat.NewDense(1, shape.HDim, nil)

	rewards, err := model.ComputeReward(decoded, h, goalEmb)
	if err != nil {
		t.Fatalf("compute reward: %v", err)
	}
	if math.Abs(rewards[0]-1) > 1e-6 {
		t.Fatalf("self-similarity reward: got=%f want=1", rewards[0])
	}
}

func TestCosineRewardZeroNormIsFinite(t *testing.T) {
	shape := testShape()
	model, err := NewCosineReward(shape, &echoDynamics{shape: shape})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	z := mat.NewDense(1, shape.ZWidth(), nil)
	h := mat.NewDense(1, shape.HDim, nil)
	goalEmb := mat.NewDense(1, shape.EmbDim, nil)

	rewards, err := model.ComputeReward(z, h, goalEmb)
	if err != nil {
		t.Fatalf("compute reward: %v", err)
	}
	if math.IsNaN(rewards[0]) || math.IsInf(rewards[0], 0) {
		t.Fatalf("zero-norm reward must be finite, got %f", rewards[0])
	}
}

func TestCosineTrainIsNoOp(t *testing.T) {
	shape := testShape()
	model, err := NewCosineReward(shape, &echoDynamics{shape: shape})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	loss, err := model.Train(nil, nil, nil, TrainSpec{})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if loss != 0 {
		t.Fatalf("frozen reward loss: got=%f want=0", loss)
	}
}
