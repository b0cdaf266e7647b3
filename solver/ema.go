package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// EMA maintains an exponential moving average shadow of the model weights.
// The shadow is what gets evaluated and checkpointed; it is never trained
// directly.
//
// The effective decay ramps with the update count,
//
//	d = decay * (1 - exp(-updates/tau))
//
// so early in training the shadow tracks the live weights closely and only
// approaches the asymptotic decay as updates accumulate. The counter is
// seeded from the resume epoch so a resumed run continues the ramp.
type EMA struct {
	decay   float64
	tau     float64
	updates int
	shadow  []*Param
}

// NewEMA snapshots the given parameters as the initial shadow state.
// initialUpdates is typically startEpoch * stepsPerEpoch.
func NewEMA(params []*Param, decay, tau float64, initialUpdates int) (*EMA, error) {
	if decay <= 0 || decay >= 1 {
		return nil, errors.NewValidationError("ema_decay", "must be in (0, 1)", decay)
	}
	if tau <= 0 {
		return nil, errors.NewValidationError("ema_tau", "must be positive", tau)
	}
	if initialUpdates < 0 {
		return nil, errors.NewValidationError("ema_updates", "must not be negative", initialUpdates)
	}
	shadow := make([]*Param, len(params))
	for i, p := range params {
		shadow[i] = p.Clone()
		shadow[i].Grad = nil
	}
	return &EMA{decay: decay, tau: tau, updates: initialUpdates, shadow: shadow}, nil
}

// DecayFactor returns the effective decay that would be used by the next
// update given the current counter.
func (e *EMA) DecayFactor() float64 {
	return e.decay * (1 - math.Exp(-float64(e.updates)/e.tau))
}

// Updates returns the update counter.
func (e *EMA) Updates() int { return e.updates }

// Shadow returns the averaged parameters.
func (e *EMA) Shadow() []*Param { return e.shadow }

// Update blends the live parameters into the shadow. It must be called
// exactly once per successful optimizer update, never on skipped
// accumulation steps.
func (e *EMA) Update(params []*Param) error {
	if len(params) != len(e.shadow) {
		return errors.NewDimensionError("EMA.Update", len(e.shadow), len(params), 0)
	}
	e.updates++
	d := e.DecayFactor()

	for i, live := range params {
		sh := e.shadow[i]
		if !live.Floating() {
			// Non-floating buffers (counters) are copied verbatim.
			sh.Ints = append(sh.Ints[:0], live.Ints...)
			continue
		}
		shData := sh.Value.RawMatrix().Data
		liveData := live.Value.RawMatrix().Data
		if len(shData) != len(liveData) {
			return errors.NewDimensionError("EMA.Update:"+live.Name, len(shData), len(liveData), 0)
		}
		// shadow = shadow*d + live*(1-d)
		floats.Scale(d, shData)
		floats.AddScaled(shData, 1-d, liveData)
	}
	return nil
}
