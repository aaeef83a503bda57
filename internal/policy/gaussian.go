package policy

import (
	"fmt"
	"math"
	"math/rand"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"oneiros/internal/nn"
)

const logTwoPi = 1.8378770664093453 // log(2*pi)

// GaussianActor is a diagonal-Gaussian policy over continuous actions.
// An MLP trunk maps (z ‖ h) to per-dimension means and raw deviations;
// the deviation is softplus(raw) + minStd so it stays strictly positive.
type GaussianActor struct {
	zWidth    int
	hDim      int
	actionDim int
	minStd    float64
	net       *nn.MLP
	src       *exprand.Rand
}

func NewGaussianActor(rng *rand.Rand, src *exprand.Rand, zWidth, hDim, actionDim, hiddenDim int, minStd float64) (*GaussianActor, error) {
	if src == nil {
		return nil, fmt.Errorf("sampling source is required")
	}
	if zWidth <= 0 || hDim <= 0 || actionDim <= 0 {
		return nil, fmt.Errorf("dims must be > 0: zWidth=%d hDim=%d actionDim=%d", zWidth, hDim, actionDim)
	}
	if minStd < 0 {
		return nil, fmt.Errorf("min std must be >= 0, got %f", minStd)
	}
	net, err := nn.NewMLP(rng, []int{zWidth + hDim, hiddenDim, 2 * actionDim}, "tanh", "identity")
	if err != nil {
		return nil, err
	}
	return &GaussianActor{
		zWidth:    zWidth,
		hDim:      hDim,
		actionDim: actionDim,
		minStd:    minStd,
		net:       net,
		src:       src,
	}, nil
}

func (a *GaussianActor) Act(z, h *mat.Dense) (*mat.Dense, []float64, []float64, error) {
	batch, err := a.checkBatch(z, h)
	if err != nil {
		return nil, nil, nil, err
	}

	actions := mat.NewDense(batch, a.actionDim, nil)
	logProbs := make([]float64, batch)
	entropies := make([]float64, batch)
	input := make([]float64, a.zWidth+a.hDim)
	for r := 0; r < batch; r++ {
		mean, std, _, err := a.distParams(input, z.RawRowView(r), h.RawRowView(r))
		if err != nil {
			return nil, nil, nil, err
		}
		row := actions.RawRowView(r)
		for d := 0; d < a.actionDim; d++ {
			dist := distuv.Normal{Mu: mean[d], Sigma: std[d], Src: a.src}
			x := dist.Rand()
			row[d] = x
			logProbs[r] += dist.LogProb(x)
			entropies[r] += 0.5*(1+logTwoPi) + math.Log(std[d])
		}
	}
	return actions, logProbs, entropies, nil
}

func (a *GaussianActor) AccumulateGrad(z, h, actions *mat.Dense, logProbGrad, entropyGrad []float64) error {
	batch, err := a.checkBatch(z, h)
	if err != nil {
		return err
	}
	ar, ac := actions.Dims()
	if ar != batch || ac != a.actionDim {
		return fmt.Errorf("action shape mismatch: got=%dx%d want=%dx%d", ar, ac, batch, a.actionDim)
	}
	if len(logProbGrad) != batch || len(entropyGrad) != batch {
		return fmt.Errorf("grad length mismatch: logProb=%d entropy=%d want=%d", len(logProbGrad), len(entropyGrad), batch)
	}

	input := make([]float64, a.zWidth+a.hDim)
	outGrad := make([]float64, 2*a.actionDim)
	for r := 0; r < batch; r++ {
		mean, std, rawStd, err := a.distParams(input, z.RawRowView(r), h.RawRowView(r))
		if err != nil {
			return err
		}
		action := actions.RawRowView(r)
		for d := 0; d < a.actionDim; d++ {
			diff := action[d] - mean[d]
			variance := std[d] * std[d]
			dLogProbDMean := diff / variance
			dLogProbDStd := (diff*diff - variance) / (variance * std[d])
			dEntropyDStd := 1 / std[d]
			// softplus'(raw) chains the raw-deviation head into std space.
			dStdDRaw := 1 / (1 + math.Exp(-rawStd[d]))
			outGrad[d] = logProbGrad[r] * dLogProbDMean
			outGrad[a.actionDim+d] = (logProbGrad[r]*dLogProbDStd + entropyGrad[r]*dEntropyDStd) * dStdDRaw
		}
		if err := a.net.AccumulateGrad(input, outGrad); err != nil {
			return err
		}
	}
	return nil
}

// Step applies accumulated gradients and resets them.
func (a *GaussianActor) Step(learningRate float64) {
	a.net.Step(learningRate)
}

// distParams runs the trunk and splits its output into distribution
// parameters. The input buffer is reused across rows.
func (a *GaussianActor) distParams(input, z, h []float64) (mean, std, rawStd []float64, err error) {
	n := copy(input, z)
	copy(input[n:], h)
	out, err := a.net.Forward(input)
	if err != nil {
		return nil, nil, nil, err
	}
	mean = out[:a.actionDim]
	rawStd = out[a.actionDim:]
	std = make([]float64, a.actionDim)
	for d := range std {
		std[d] = softplus(rawStd[d]) + a.minStd
	}
	return mean, std, rawStd, nil
}

func (a *GaussianActor) checkBatch(z, h *mat.Dense) (int, error) {
	zr, zc := z.Dims()
	hr, hc := h.Dims()
	if zr != hr {
		return 0, fmt.Errorf("latent batch mismatch: z rows=%d h rows=%d", zr, hr)
	}
	if zc != a.zWidth || hc != a.hDim {
		return 0, fmt.Errorf("latent width mismatch: z=%d/%d h=%d/%d", zc, a.zWidth, hc, a.hDim)
	}
	return zr, nil
}

func softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}
