package world

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LinearRSSM is a deterministic reference recurrent state-space model:
// a linear-tanh recurrent update and block-softmax categorical means. It
// stands in for a learned dynamics model when exercising the trainers.
type LinearRSSM struct {
	shape Shape

	wh *mat.Dense // hDim x hDim
	wz *mat.Dense // zWidth x hDim
	wa *mat.Dense // actionDim x hDim
	wp *mat.Dense // hDim x zWidth
	wo *mat.Dense // embDim x zWidth
	wr *mat.Dense // hDim x zWidth
}

func NewLinearRSSM(rng *rand.Rand, shape Shape) (*LinearRSSM, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	zw := shape.ZWidth()
	return &LinearRSSM{
		shape: shape,
		wh:    randomDense(rng, shape.HDim, shape.HDim),
		wz:    randomDense(rng, zw, shape.HDim),
		wa:    randomDense(rng, shape.ActionDim, shape.HDim),
		wp:    randomDense(rng, shape.HDim, zw),
		wo:    randomDense(rng, shape.EmbDim, zw),
		wr:    randomDense(rng, shape.HDim, zw),
	}, nil
}

func (m *LinearRSSM) Imagine(action, z, h *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	batch, err := CheckStateBatch(z, h, m.shape)
	if err != nil {
		return nil, nil, err
	}
	ar, ac := action.Dims()
	if ar != batch || ac != m.shape.ActionDim {
		return nil, nil, fmt.Errorf("action shape mismatch: got=%dx%d want=%dx%d", ar, ac, batch, m.shape.ActionDim)
	}

	var hTerm, zTerm, aTerm mat.Dense
	hTerm.Mul(h, m.wh)
	zTerm.Mul(z, m.wz)
	aTerm.Mul(action, m.wa)

	nextH := mat.NewDense(batch, m.shape.HDim, nil)
	nextH.Add(&hTerm, &zTerm)
	nextH.Add(nextH, &aTerm)
	nextH.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, nextH)

	var logits mat.Dense
	logits.Mul(nextH, m.wp)
	nextZ, err := blockSoftmax(&logits, m.shape)
	if err != nil {
		return nil, nil, err
	}
	return nextH, nextZ, nil
}

func (m *LinearRSSM) PosteriorMean(h, emb *mat.Dense) (*mat.Dense, error) {
	hr, hc := h.Dims()
	er, ec := emb.Dims()
	if hr != er {
		return nil, fmt.Errorf("posterior batch mismatch: h rows=%d emb rows=%d", hr, er)
	}
	if hc != m.shape.HDim {
		return nil, fmt.Errorf("h width mismatch: got=%d want=%d", hc, m.shape.HDim)
	}
	if ec != m.shape.EmbDim {
		return nil, fmt.Errorf("embedding width mismatch: got=%d want=%d", ec, m.shape.EmbDim)
	}

	var obsTerm, recTerm, logits mat.Dense
	obsTerm.Mul(emb, m.wo)
	recTerm.Mul(h, m.wr)
	logits.Add(&obsTerm, &recTerm)
	return blockSoftmax(&logits, m.shape)
}

// blockSoftmax normalizes each numClasses-wide block of logits into a
// categorical mean, one block per stochastic dimension.
func blockSoftmax(logits *mat.Dense, shape Shape) (*mat.Dense, error) {
	rows, cols := logits.Dims()
	if cols != shape.ZWidth() {
		return nil, fmt.Errorf("logit width mismatch: got=%d want=%d", cols, shape.ZWidth())
	}
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		row := logits.RawRowView(r)
		dst := out.RawRowView(r)
		for d := 0; d < shape.ZDim; d++ {
			block := row[d*shape.NumClasses : (d+1)*shape.NumClasses]
			max := block[0]
			for _, v := range block[1:] {
				if v > max {
					max = v
				}
			}
			sum := 0.0
			dstBlock := dst[d*shape.NumClasses : (d+1)*shape.NumClasses]
			for i, v := range block {
				e := math.Exp(v - max)
				dstBlock[i] = e
				sum += e
			}
			for i := range dstBlock {
				dstBlock[i] /= sum
			}
		}
	}
	return out, nil
}

func randomDense(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	scale := math.Sqrt(2.0 / float64(rows))
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(rows, cols, data)
}
