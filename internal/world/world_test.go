package world

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func testShape() Shape {
	return Shape{ZDim: 3, NumClasses: 4, HDim: 5, EmbDim: 6, ActionDim: 2}
}

func TestShapeValidate(t *testing.T) {
	if err := testShape().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := testShape()
	bad.NumClasses = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCheckStateBatch(t *testing.T) {
	shape := testShape()
	z := mat.NewDense(2, shape.ZWidth(), nil)
	h := mat.NewDense(2, shape.HDim, nil)

	batch, err := CheckStateBatch(z, h, shape)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch != 2 {
		t.Fatalf("unexpected batch: got=%d want=2", batch)
	}

	if _, err := CheckStateBatch(mat.NewDense(3, shape.ZWidth(), nil), h, shape); err == nil {
		t.Fatal("expected row mismatch error")
	}
	if _, err := CheckStateBatch(mat.NewDense(2, 7, nil), h, shape); err == nil {
		t.Fatal("expected z width error")
	}
}

func TestLinearRSSMImagineShapesAndDeterminism(t *testing.T) {
	shape := testShape()
	m, err := NewLinearRSSM(rand.New(rand.NewSource(11)), shape)
	if err != nil {
		t.Fatalf("new rssm: %v", err)
	}

	batch := 3
	z := randomDense(rand.New(rand.NewSource(1)), batch, shape.ZWidth())
	h := randomDense(rand.New(rand.NewSource(2)), batch, shape.HDim)
	a := randomDense(rand.New(rand.NewSource(3)), batch, shape.ActionDim)

	h1, z1, err := m.Imagine(a, z, h)
	if err != nil {
		t.Fatalf("imagine: %v", err)
	}
	hr, hc := h1.Dims()
	zr, zc := z1.Dims()
	if hr != batch || hc != shape.HDim {
		t.Fatalf("next h shape: got=%dx%d want=%dx%d", hr, hc, batch, shape.HDim)
	}
	if zr != batch || zc != shape.ZWidth() {
		t.Fatalf("next z shape: got=%dx%d want=%dx%d", zr, zc, batch, shape.ZWidth())
	}

	h2, z2, err := m.Imagine(a, z, h)
	if err != nil {
		t.Fatalf("imagine: %v", err)
	}
	if !mat.EqualApprox(h1, h2, 0) || !mat.EqualApprox(z1, z2, 0) {
		t.Fatal("imagine is not deterministic for fixed inputs")
	}

	if _, _, err := m.Imagine(mat.NewDense(batch, 1, nil), z, h); err == nil {
		t.Fatal("expected action shape error")
	}
}

func TestLinearRSSMPosteriorBlocksSumToOne(t *testing.T) {
	shape := testShape()
	m, err := NewLinearRSSM(rand.New(rand.NewSource(5)), shape)
	if err != nil {
		t.Fatalf("new rssm: %v", err)
	}

	batch := 2
	h := randomDense(rand.New(rand.NewSource(8)), batch, shape.HDim)
	emb := randomDense(rand.New(rand.NewSource(9)), batch, shape.EmbDim)

	z, err := m.PosteriorMean(h, emb)
	if err != nil {
		t.Fatalf("posterior: %v", err)
	}
	for r := 0; r < batch; r++ {
		row := z.RawRowView(r)
		for d := 0; d < shape.ZDim; d++ {
			sum := 0.0
			for _, v := range row[d*shape.NumClasses : (d+1)*shape.NumClasses] {
				if v < 0 || v > 1 {
					t.Fatalf("posterior mean outside [0,1]: %f", v)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("block %d of row %d sums to %f", d, r, sum)
			}
		}
	}

	if _, err := m.PosteriorMean(h, mat.NewDense(batch, 1, nil)); err == nil {
		t.Fatal("expected embedding width error")
	}
}

func TestMLPEncoderShapes(t *testing.T) {
	shape := testShape()
	enc, err := NewMLPEncoder(rand.New(rand.NewSource(4)), shape, 8)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	batch := 4
	z := randomDense(rand.New(rand.NewSource(6)), batch, shape.ZWidth())
	h := randomDense(rand.New(rand.NewSource(7)), batch, shape.HDim)

	emb, err := enc.EmbedMean(z, h)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	er, ec := emb.Dims()
	if er != batch || ec != shape.EmbDim {
		t.Fatalf("embedding shape: got=%dx%d want=%dx%d", er, ec, batch, shape.EmbDim)
	}

	if _, err := enc.EmbedMean(mat.NewDense(batch, 3, nil), h); err == nil {
		t.Fatal("expected z width error")
	}
}
