package schedule

import (
	"math"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// Accumulator decides, per global step, whether enough micro-batches have
// been processed to trigger an optimizer update. The window ramps linearly
// from 1 to its target over the warmup window and stays fixed afterwards.
//
// The query-based detector family opts out of accumulation; a disabled
// accumulator fires on every step.
type Accumulator struct {
	enabled bool
	target  float64
	window  int
	current int
	lastOpt int
}

// NewAccumulator derives the target window from the reference batch size
// (the batch the published hyperparameters were tuned for) and the actual
// per-run batch size.
func NewAccumulator(referenceBatch, actualBatch, warmupWindow int, enabled bool) (*Accumulator, error) {
	if referenceBatch <= 0 {
		return nil, errors.NewValidationError("reference_batch_size", "must be positive", referenceBatch)
	}
	if actualBatch <= 0 {
		return nil, errors.NewValidationError("batch_size", "must be positive", actualBatch)
	}
	a := &Accumulator{
		enabled: enabled,
		target:  float64(referenceBatch) / float64(actualBatch),
		window:  warmupWindow,
		current: 1,
	}
	if !enabled {
		a.current = 1
	} else if warmupWindow <= 0 {
		a.current = a.targetWindow()
	}
	return a, nil
}

func (a *Accumulator) targetWindow() int {
	t := int(math.Round(a.target))
	if t < 1 {
		return 1
	}
	return t
}

// Target returns the steady-state accumulation window.
func (a *Accumulator) Target() int {
	if !a.enabled {
		return 1
	}
	return a.targetWindow()
}

// Update recomputes the current window for the given global step. During
// warmup the window interpolates from 1 toward the unrounded target and is
// rounded afterwards, as the original ramp does.
func (a *Accumulator) Update(globalStep int) {
	if !a.enabled {
		a.current = 1
		return
	}
	if globalStep <= a.window {
		v := math.Round(interp(globalStep, a.window, 1, a.target))
		if v < 1 {
			v = 1
		}
		a.current = int(v)
		return
	}
	a.current = a.targetWindow()
}

// Current returns the accumulation window for the most recent Update call.
// It is always >= 1.
func (a *Accumulator) Current() int { return a.current }

// ShouldStep reports whether the optimizer should update at this global
// step. A disabled accumulator updates on every step.
func (a *Accumulator) ShouldStep(globalStep int) bool {
	if !a.enabled {
		return true
	}
	return globalStep-a.lastOpt >= a.current
}

// Advance records a fired optimizer update, resetting the accumulation
// origin. Must only be called when ShouldStep returned true and the update
// path actually ran.
func (a *Accumulator) Advance(globalStep int) {
	a.lastOpt = globalStep
}

// LastOptimizerStep returns the global step of the last fired update.
func (a *Accumulator) LastOptimizerStep() int { return a.lastOpt }
