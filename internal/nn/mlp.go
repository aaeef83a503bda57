package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// MLP is a dense feed-forward network with explicit gradient accumulation.
// Forward passes never touch gradient state; AccumulateGrad adds parameter
// gradients for one input without applying them; Step applies the
// accumulated gradients and resets them. The split keeps value-only paths
// and gradient-carrying paths separate at the call site.
type MLP struct {
	sizes   []int
	acts    []string
	weights [][]float64
	biases  [][]float64
	gradW   [][]float64
	gradB   [][]float64
}

func NewMLP(rng *rand.Rand, sizes []int, hiddenActivation, outputActivation string) (*MLP, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(sizes) < 2 {
		return nil, fmt.Errorf("mlp needs at least input and output sizes, got %d", len(sizes))
	}
	for i, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("layer %d size must be > 0, got %d", i, size)
		}
	}
	if _, err := Activation(hiddenActivation); err != nil {
		return nil, err
	}
	if _, err := Activation(outputActivation); err != nil {
		return nil, err
	}

	layers := len(sizes) - 1
	m := &MLP{
		sizes:   append([]int(nil), sizes...),
		acts:    make([]string, layers),
		weights: make([][]float64, layers),
		biases:  make([][]float64, layers),
		gradW:   make([][]float64, layers),
		gradB:   make([][]float64, layers),
	}
	for l := 0; l < layers; l++ {
		in, out := sizes[l], sizes[l+1]
		m.acts[l] = hiddenActivation
		if l == layers-1 {
			m.acts[l] = outputActivation
		}
		m.weights[l] = make([]float64, in*out)
		m.biases[l] = make([]float64, out)
		m.gradW[l] = make([]float64, in*out)
		m.gradB[l] = make([]float64, out)
		scale := math.Sqrt(2.0 / float64(in))
		for i := range m.weights[l] {
			m.weights[l][i] = (rng.Float64()*2 - 1) * scale
		}
	}
	return m, nil
}

func (m *MLP) InputSize() int  { return m.sizes[0] }
func (m *MLP) OutputSize() int { return m.sizes[len(m.sizes)-1] }

func (m *MLP) Forward(input []float64) ([]float64, error) {
	_, post, err := m.forwardCache(input)
	if err != nil {
		return nil, err
	}
	return post[len(post)-1], nil
}

// forwardCache returns per-layer pre-activations and activated outputs.
// post[0] is the input itself; pre[l] and post[l+1] describe layer l.
func (m *MLP) forwardCache(input []float64) (pre, post [][]float64, err error) {
	if len(input) != m.sizes[0] {
		return nil, nil, fmt.Errorf("input size mismatch: got=%d want=%d", len(input), m.sizes[0])
	}
	layers := len(m.weights)
	pre = make([][]float64, layers)
	post = make([][]float64, layers+1)
	post[0] = input
	for l := 0; l < layers; l++ {
		in, out := m.sizes[l], m.sizes[l+1]
		fn, err := Activation(m.acts[l])
		if err != nil {
			return nil, nil, err
		}
		pre[l] = make([]float64, out)
		post[l+1] = make([]float64, out)
		for o := 0; o < out; o++ {
			total := m.biases[l][o]
			row := m.weights[l][o*in : (o+1)*in]
			for i := 0; i < in; i++ {
				total += row[i] * post[l][i]
			}
			pre[l][o] = total
			post[l+1][o] = fn(total)
		}
	}
	return pre, post, nil
}

// AccumulateGrad backpropagates dLoss/dOutput for one input and adds the
// resulting parameter gradients to the accumulators.
func (m *MLP) AccumulateGrad(input, outputGrad []float64) error {
	if len(outputGrad) != m.OutputSize() {
		return fmt.Errorf("output grad size mismatch: got=%d want=%d", len(outputGrad), m.OutputSize())
	}
	pre, post, err := m.forwardCache(input)
	if err != nil {
		return err
	}

	layers := len(m.weights)
	delta := make([]float64, m.OutputSize())
	for o := range delta {
		d, err := Derivative(m.acts[layers-1], pre[layers-1][o])
		if err != nil {
			return err
		}
		delta[o] = outputGrad[o] * d
	}

	for l := layers - 1; l >= 0; l-- {
		in, out := m.sizes[l], m.sizes[l+1]
		for o := 0; o < out; o++ {
			m.gradB[l][o] += delta[o]
			row := m.gradW[l][o*in : (o+1)*in]
			for i := 0; i < in; i++ {
				row[i] += delta[o] * post[l][i]
			}
		}
		if l == 0 {
			break
		}
		next := make([]float64, in)
		for i := 0; i < in; i++ {
			sum := 0.0
			for o := 0; o < out; o++ {
				sum += delta[o] * m.weights[l][o*in+i]
			}
			d, err := Derivative(m.acts[l-1], pre[l-1][i])
			if err != nil {
				return err
			}
			next[i] = sum * d
		}
		delta = next
	}
	return nil
}

// Step applies one SGD update from the accumulated gradients and resets them.
func (m *MLP) Step(learningRate float64) {
	for l := range m.weights {
		for i := range m.weights[l] {
			m.weights[l][i] -= learningRate * m.gradW[l][i]
			m.gradW[l][i] = 0
		}
		for i := range m.biases[l] {
			m.biases[l][i] -= learningRate * m.gradB[l][i]
			m.gradB[l][i] = 0
		}
	}
}

func (m *MLP) NumParameters() int {
	total := 0
	for l := range m.weights {
		total += len(m.weights[l]) + len(m.biases[l])
	}
	return total
}

// Parameters returns a flat copy of all weights and biases.
func (m *MLP) Parameters() []float64 {
	out := make([]float64, 0, m.NumParameters())
	for l := range m.weights {
		out = append(out, m.weights[l]...)
		out = append(out, m.biases[l]...)
	}
	return out
}

// Gradients returns a flat copy of the accumulated gradients, laid out
// like Parameters.
func (m *MLP) Gradients() []float64 {
	out := make([]float64, 0, m.NumParameters())
	for l := range m.gradW {
		out = append(out, m.gradW[l]...)
		out = append(out, m.gradB[l]...)
	}
	return out
}

// SetParameters overwrites all weights and biases from a flat vector. The
// copy is total: either every parameter is replaced or none is.
func (m *MLP) SetParameters(params []float64) error {
	if len(params) != m.NumParameters() {
		return fmt.Errorf("parameter count mismatch: got=%d want=%d", len(params), m.NumParameters())
	}
	offset := 0
	for l := range m.weights {
		offset += copy(m.weights[l], params[offset:offset+len(m.weights[l])])
		offset += copy(m.biases[l], params[offset:offset+len(m.biases[l])])
	}
	return nil
}
