// Package world defines the latent dynamics-model contracts the training
// core consumes, plus reference implementations good enough to drive the
// trainers end to end. Implementations are queried value-only: the core
// never routes gradient through a Dynamics or Encoder.
package world

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Shape describes the latent geometry shared by every component.
type Shape struct {
	ZDim       int
	NumClasses int
	HDim       int
	EmbDim     int
	ActionDim  int
}

// ZWidth is the flattened width of the categorical stochastic state.
func (s Shape) ZWidth() int { return s.ZDim * s.NumClasses }

func (s Shape) Validate() error {
	if s.ZDim <= 0 {
		return fmt.Errorf("z dim must be > 0, got %d", s.ZDim)
	}
	if s.NumClasses <= 0 {
		return fmt.Errorf("num classes must be > 0, got %d", s.NumClasses)
	}
	if s.HDim <= 0 {
		return fmt.Errorf("h dim must be > 0, got %d", s.HDim)
	}
	if s.EmbDim <= 0 {
		return fmt.Errorf("emb dim must be > 0, got %d", s.EmbDim)
	}
	if s.ActionDim <= 0 {
		return fmt.Errorf("action dim must be > 0, got %d", s.ActionDim)
	}
	return nil
}

// Dynamics is the latent transition model contract.
type Dynamics interface {
	// Imagine advances a batch of latent states one step under a batch of
	// actions, returning the next recurrent and stochastic states.
	Imagine(action, z, h *mat.Dense) (nextH, nextZ *mat.Dense, err error)
	// PosteriorMean infers the mean stochastic state from a recurrent state
	// and an observation embedding.
	PosteriorMean(h, emb *mat.Dense) (*mat.Dense, error)
}

// Encoder projects latent states into the affinity embedding space. The
// returned matrix is the mean of the encoder's output distribution.
type Encoder interface {
	EmbedMean(z, h *mat.Dense) (*mat.Dense, error)
}

// CheckStateBatch validates that z and h form a coherent latent batch for
// the given shape. Mismatches are reported, never broadcast.
func CheckStateBatch(z, h *mat.Dense, shape Shape) (batch int, err error) {
	if z == nil || h == nil {
		return 0, fmt.Errorf("latent batch must not be nil")
	}
	zr, zc := z.Dims()
	hr, hc := h.Dims()
	if zr != hr {
		return 0, fmt.Errorf("latent batch mismatch: z rows=%d h rows=%d", zr, hr)
	}
	if zc != shape.ZWidth() {
		return 0, fmt.Errorf("z width mismatch: got=%d want=%d", zc, shape.ZWidth())
	}
	if hc != shape.HDim {
		return 0, fmt.Errorf("h width mismatch: got=%d want=%d", hc, shape.HDim)
	}
	return zr, nil
}
