package nn

import (
	"fmt"
	"math"
)

type ActivationFn func(float64) float64

// Activation returns the named activation function.
func Activation(name string) (ActivationFn, error) {
	switch name {
	case "identity":
		return func(x float64) float64 { return x }, nil
	case "relu":
		return func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		}, nil
	case "tanh":
		return math.Tanh, nil
	case "sigmoid":
		return sigmoid, nil
	case "softplus":
		return softplus, nil
	default:
		return nil, fmt.Errorf("unsupported activation: %s", name)
	}
}

// Derivative evaluates the named activation's derivative at pre-activation x.
func Derivative(name string, x float64) (float64, error) {
	switch name {
	case "identity":
		return 1, nil
	case "relu":
		if x > 0 {
			return 1, nil
		}
		return 0, nil
	case "tanh":
		y := math.Tanh(x)
		return 1 - (y * y), nil
	case "sigmoid":
		s := sigmoid(x)
		return s * (1 - s), nil
	case "softplus":
		// d/dx log(1+e^x) = sigmoid(x)
		return sigmoid(x), nil
	default:
		return 0, fmt.Errorf("unsupported derivative: %s", name)
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func softplus(x float64) float64 {
	// Stable form: max(x,0) + log1p(exp(-|x|)).
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}
