package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// AdamW implements Adam with decoupled weight decay, the optimizer used by
// the query-based detector family. Momentum warmup does not apply to it
// (HasMomentum stays false on its groups); the warmup scheduler only drives
// the learning rate.
type AdamW struct {
	groups    []*Group
	beta1     float64
	beta2     float64
	eps       float64
	m         map[*Param][]float64
	v         map[*Param][]float64
	stepCount int
}

// NewAdamW builds an AdamW optimizer over the given parameter groups with
// the standard betas (0.9, 0.999).
func NewAdamW(groups []*Group) (*AdamW, error) {
	if len(groups) == 0 {
		return nil, errors.WithStack(errors.ErrNoParameters)
	}
	a := &AdamW{
		groups: groups,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		m:      make(map[*Param][]float64),
		v:      make(map[*Param][]float64),
	}
	for _, g := range groups {
		for _, p := range g.FloatingParams() {
			n := len(p.Value.RawMatrix().Data)
			a.m[p] = make([]float64, n)
			a.v[p] = make([]float64, n)
		}
	}
	return a, nil
}

// Groups implements Optimizer.Groups.
func (a *AdamW) Groups() []*Group { return a.groups }

// StepCount implements Optimizer.StepCount.
func (a *AdamW) StepCount() int { return a.stepCount }

// Step implements Optimizer.Step.
func (a *AdamW) Step() error {
	a.stepCount++
	bc1 := 1.0 - math.Pow(a.beta1, float64(a.stepCount))
	bc2 := 1.0 - math.Pow(a.beta2, float64(a.stepCount))

	for _, g := range a.groups {
		for _, p := range g.FloatingParams() {
			if p.Grad == nil {
				continue
			}
			w := p.Value.RawMatrix().Data
			grad := p.Grad.RawMatrix().Data
			m, v := a.m[p], a.v[p]

			// Decoupled weight decay: w <- w * (1 - lr*wd)
			if g.WeightDecay != 0 {
				floats.Scale(1.0-g.LR*g.WeightDecay, w)
			}

			for j := range w {
				m[j] = a.beta1*m[j] + (1-a.beta1)*grad[j]
				v[j] = a.beta2*v[j] + (1-a.beta2)*grad[j]*grad[j]
				mHat := m[j] / bc1
				vHat := v[j] / bc2
				w[j] -= g.LR * mHat / (math.Sqrt(vHat) + a.eps)
			}
		}
	}
	return nil
}

// ZeroGrad implements Optimizer.ZeroGrad.
func (a *AdamW) ZeroGrad() {
	for _, g := range a.groups {
		for _, p := range g.FloatingParams() {
			if p.Grad == nil {
				continue
			}
			p.Grad.Zero()
		}
	}
}

// State implements Optimizer.State.
func (a *AdamW) State() *State {
	buffers := make(map[string][]float64, 2*len(a.m))
	for _, g := range a.groups {
		for _, p := range g.FloatingParams() {
			buffers[p.Name+".m"] = append([]float64(nil), a.m[p]...)
			buffers[p.Name+".v"] = append([]float64(nil), a.v[p]...)
		}
	}
	return &State{Type: "adamw", StepCount: a.stepCount, Buffers: buffers}
}

// LoadState implements Optimizer.LoadState.
func (a *AdamW) LoadState(state *State) error {
	if state.Type != "adamw" {
		return errors.NewValidationError("optimizer_state", "state type mismatch", state.Type)
	}
	a.stepCount = state.StepCount
	for _, g := range a.groups {
		for _, p := range g.FloatingParams() {
			if m, ok := state.Buffers[p.Name+".m"]; ok {
				if len(m) != len(a.m[p]) {
					return errors.NewDimensionError("AdamW.LoadState:"+p.Name, len(a.m[p]), len(m), 0)
				}
				copy(a.m[p], m)
			}
			if v, ok := state.Buffers[p.Name+".v"]; ok {
				if len(v) != len(a.v[p]) {
					return errors.NewDimensionError("AdamW.LoadState:"+p.Name, len(a.v[p]), len(v), 0)
				}
				copy(a.v[p], v)
			}
		}
	}
	return nil
}
