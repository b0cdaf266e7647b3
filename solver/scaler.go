package solver

import (
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// Default dynamic-scaling hyperparameters, matching the usual AMP defaults.
const (
	defaultInitScale      = 65536.0
	defaultGrowthFactor   = 2.0
	defaultBackoffFactor  = 0.5
	defaultGrowthInterval = 2000
)

// GradScaler implements dynamic loss scaling for mixed-precision training.
//
// Per micro-batch the aggregate loss is multiplied by the current scale
// before backpropagation. On an optimizer-update step the gradients are
// divided back by the scale, optionally clipped, and the optimizer is
// stepped unless a non-finite gradient was found, in which case the update
// is skipped and the scale shrinks. After enough consecutive good steps the
// scale grows again.
//
// When disabled, Scale and unscaling are identity but the
// unscale-before-clip / clip-before-step ordering still holds.
type GradScaler struct {
	enabled        bool
	scale          float64
	growthFactor   float64
	backoffFactor  float64
	growthInterval int

	goodSteps int
	foundInf  bool
	unscaled  bool
}

// NewGradScaler returns a scaler. With enabled=false it degrades to a plain
// pass-through executor.
func NewGradScaler(enabled bool) *GradScaler {
	return &GradScaler{
		enabled:        enabled,
		scale:          defaultInitScale,
		growthFactor:   defaultGrowthFactor,
		backoffFactor:  defaultBackoffFactor,
		growthInterval: defaultGrowthInterval,
	}
}

// Enabled reports whether dynamic scaling is active.
func (s *GradScaler) Enabled() bool { return s.enabled }

// LossScale returns the current dynamic scale (1 when disabled).
func (s *GradScaler) LossScale() float64 {
	if !s.enabled {
		return 1
	}
	return s.scale
}

// Scale multiplies the loss by the current scale factor.
func (s *GradScaler) Scale(loss float64) float64 {
	if !s.enabled {
		return loss
	}
	return loss * s.scale
}

// UnscaleAndClip divides all gradients by the current scale, records whether
// any gradient is non-finite, then clips the global gradient norm to maxNorm
// (skipped when maxNorm <= 0 or when a non-finite value was found). It is
// idempotent within one update step.
func (s *GradScaler) UnscaleAndClip(groups []*Group, maxNorm float64) {
	if s.unscaled {
		return
	}
	s.unscaled = true

	if s.enabled {
		inv := 1.0 / s.scale
		for _, g := range groups {
			for _, p := range g.FloatingParams() {
				if p.Grad == nil {
					continue
				}
				floats.Scale(inv, p.Grad.RawMatrix().Data)
			}
		}
	}

	// Only the scan outcome matters here; the step number reaches the user
	// through the overflow warning emitted from Step.
	if CheckFinite(groups, 0) != nil {
		s.foundInf = true
	}

	if !s.foundInf && maxNorm > 0 {
		ClipGradNorm(groups, maxNorm)
	}
}

// Step applies the optimizer update unless non-finite gradients were found
// during unscaling, in which case the update is skipped and a
// GradientOverflowWarning is emitted. Gradients not yet unscaled are
// unscaled first (without clipping). Returns whether the optimizer stepped.
func (s *GradScaler) Step(opt Optimizer, globalStep int) (bool, error) {
	if !s.unscaled {
		s.UnscaleAndClip(opt.Groups(), 0)
	}
	if s.foundInf {
		errors.Warn(errors.NewGradientOverflowWarning(globalStep, s.scale, s.scale*s.backoffFactor))
		return false, nil
	}
	if err := opt.Step(); err != nil {
		return false, err
	}
	return true, nil
}

// Update adjusts the dynamic scale after a Step: shrink on overflow, grow
// after growthInterval consecutive good steps. Must be called once per
// optimizer-update step, after Step.
func (s *GradScaler) Update() {
	if s.enabled {
		if s.foundInf {
			s.scale *= s.backoffFactor
			s.goodSteps = 0
		} else {
			s.goodSteps++
			if s.goodSteps >= s.growthInterval {
				s.scale *= s.growthFactor
				s.goodSteps = 0
			}
		}
	}
	s.foundInf = false
	s.unscaled = false
}
