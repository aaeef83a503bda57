package returns

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestLambdaTargetValidation(t *testing.T) {
	r := mat.NewDense(2, 1, []float64{1, 1})
	v := mat.NewDense(2, 1, []float64{0, 0})

	if _, err := LambdaTarget(nil, 0.9, v, 0.95); err == nil {
		t.Fatal("expected nil rewards error")
	}
	if _, err := LambdaTarget(r, 0.9, mat.NewDense(3, 1, nil), 0.95); err == nil {
		t.Fatal("expected shape mismatch error")
	}
	if _, err := LambdaTarget(r, 1.5, v, 0.95); err == nil {
		t.Fatal("expected discount range error")
	}
	if _, err := LambdaTarget(r, 0.9, v, -0.1); err == nil {
		t.Fatal("expected lambda range error")
	}
}

func TestLambdaZeroIsOneStepTD(t *testing.T) {
	rewards := mat.NewDense(3, 2, []float64{
		1, 0,
		2, 1,
		3, -1,
	})
	values := mat.NewDense(3, 2, []float64{
		10, 5,
		20, 6,
		30, 7,
	})
	const gamma = 0.9

	targets, err := LambdaTarget(rewards, gamma, values, 0)
	if err != nil {
		t.Fatalf("lambda target: %v", err)
	}
	for b := 0; b < 2; b++ {
		for tIdx := 0; tIdx < 2; tIdx++ {
			want := rewards.At(tIdx, b) + gamma*values.At(tIdx+1, b)
			if math.Abs(targets.At(tIdx, b)-want) > 1e-12 {
				t.Fatalf("target[%d,%d]: got=%f want=%f", tIdx, b, targets.At(tIdx, b), want)
			}
		}
		want := rewards.At(2, b) + gamma*values.At(2, b)
		if math.Abs(targets.At(2, b)-want) > 1e-12 {
			t.Fatalf("bootstrap target[2,%d]: got=%f want=%f", b, targets.At(2, b), want)
		}
	}
}

func TestLambdaOneIsBootstrappedReturn(t *testing.T) {
	rewards := mat.NewDense(3, 1, []float64{1, 2, 3})
	values := mat.NewDense(3, 1, []float64{0, 0, 10})
	const gamma = 0.5

	targets, err := LambdaTarget(rewards, gamma, values, 1)
	if err != nil {
		t.Fatalf("lambda target: %v", err)
	}
	// target[2] = 3 + 0.5*10 = 8; target[1] = 2 + 0.5*8 = 6; target[0] = 1 + 0.5*6 = 4.
	want := []float64{4, 6, 8}
	for tIdx, w := range want {
		if math.Abs(targets.At(tIdx, 0)-w) > 1e-12 {
			t.Fatalf("target[%d]: got=%f want=%f", tIdx, targets.At(tIdx, 0), w)
		}
	}
}

func TestLambdaBlendHandComputed(t *testing.T) {
	rewards := mat.NewDense(2, 1, []float64{1, 1})
	values := mat.NewDense(2, 1, []float64{2, 4})
	const gamma, lambda = 0.9, 0.5

	targets, err := LambdaTarget(rewards, gamma, values, lambda)
	if err != nil {
		t.Fatalf("lambda target: %v", err)
	}
	// target[1] = 1 + 0.9*4 = 4.6
	// target[0] = 1 + 0.9*(0.5*4 + 0.5*4.6) = 1 + 0.9*4.3 = 4.87
	if math.Abs(targets.At(1, 0)-4.6) > 1e-12 {
		t.Fatalf("target[1]: got=%f want=4.6", targets.At(1, 0))
	}
	if math.Abs(targets.At(0, 0)-4.87) > 1e-12 {
		t.Fatalf("target[0]: got=%f want=4.87", targets.At(0, 0))
	}
}
