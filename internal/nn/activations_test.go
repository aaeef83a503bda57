package nn

import (
	"math"
	"testing"
)

func TestActivationValues(t *testing.T) {
	tests := []struct {
		name  string
		act   string
		x     float64
		want  float64
		delta float64
	}{
		{name: "identity", act: "identity", x: 2.5, want: 2.5, delta: 1e-12},
		{name: "relu-negative", act: "relu", x: -1, want: 0, delta: 1e-12},
		{name: "relu-positive", act: "relu", x: 3, want: 3, delta: 1e-12},
		{name: "tanh-zero", act: "tanh", x: 0, want: 0, delta: 1e-12},
		{name: "sigmoid-zero", act: "sigmoid", x: 0, want: 0.5, delta: 1e-12},
		{name: "softplus-zero", act: "softplus", x: 0, want: math.Log(2), delta: 1e-12},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn, err := Activation(tc.act)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := fn(tc.x)
			if math.Abs(got-tc.want) > tc.delta {
				t.Fatalf("unexpected value: got=%f want=%f", got, tc.want)
			}
		})
	}
}

func TestActivationUnknown(t *testing.T) {
	if _, err := Activation("none"); err == nil {
		t.Fatal("expected unsupported activation error")
	}
	if _, err := Derivative("none", 0); err == nil {
		t.Fatal("expected unsupported derivative error")
	}
}

func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	const eps = 1e-6
	for _, act := range []string{"identity", "tanh", "sigmoid", "softplus"} {
		fn, err := Activation(act)
		if err != nil {
			t.Fatalf("activation %s: %v", act, err)
		}
		for _, x := range []float64{-2.0, -0.3, 0.1, 1.7} {
			want := (fn(x+eps) - fn(x-eps)) / (2 * eps)
			got, err := Derivative(act, x)
			if err != nil {
				t.Fatalf("derivative %s: %v", act, err)
			}
			if math.Abs(got-want) > 1e-5 {
				t.Fatalf("%s'(%f): got=%f want=%f", act, x, got, want)
			}
		}
	}
}

func TestSoftplusStableForLargeInputs(t *testing.T) {
	fn, err := Activation("softplus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fn(1000); math.IsInf(got, 1) || math.Abs(got-1000) > 1e-9 {
		t.Fatalf("softplus(1000): got=%f want=1000", got)
	}
	if got := fn(-1000); got != 0 {
		t.Fatalf("softplus(-1000): got=%g want=0", got)
	}
}
