package solver

import (
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// Optimizer is the interface the training core drives. The concrete
// optimizer owns the parameter groups; schedulers mutate the groups' LR and
// momentum between calls to Step.
type Optimizer interface {
	// Groups returns the parameter groups in construction order. Group 0 is
	// the bias group.
	Groups() []*Group

	// Step applies one optimizer update from the accumulated gradients.
	Step() error

	// ZeroGrad clears all gradients.
	ZeroGrad()

	// StepCount returns the number of updates applied so far.
	StepCount() int

	// State captures the serializable optimizer state for checkpointing.
	State() *State

	// LoadState restores optimizer state from a checkpoint.
	LoadState(state *State) error
}

// State is the serializable optimizer state stored in checkpoints.
type State struct {
	Type      string               `json:"type"`
	StepCount int                  `json:"step_count"`
	Buffers   map[string][]float64 `json:"buffers,omitempty"`
}

// SGD implements stochastic gradient descent with momentum and coupled
// weight decay, the optimizer used by the anchor-based detector families.
type SGD struct {
	groups    []*Group
	velocity  map[*Param][]float64
	nesterov  bool
	stepCount int
}

// NewSGD builds an SGD optimizer over the given parameter groups.
func NewSGD(groups []*Group, nesterov bool) (*SGD, error) {
	if len(groups) == 0 {
		return nil, errors.WithStack(errors.ErrNoParameters)
	}
	s := &SGD{
		groups:   groups,
		velocity: make(map[*Param][]float64),
		nesterov: nesterov,
	}
	for _, g := range groups {
		for _, p := range g.FloatingParams() {
			s.velocity[p] = make([]float64, len(p.Value.RawMatrix().Data))
		}
	}
	return s, nil
}

// Groups implements Optimizer.Groups.
func (s *SGD) Groups() []*Group { return s.groups }

// StepCount implements Optimizer.StepCount.
func (s *SGD) StepCount() int { return s.stepCount }

// Step implements Optimizer.Step.
func (s *SGD) Step() error {
	for _, g := range s.groups {
		for _, p := range g.FloatingParams() {
			if p.Grad == nil {
				continue
			}
			w := p.Value.RawMatrix().Data
			grad := p.Grad.RawMatrix().Data

			// Coupled weight decay: g <- g + wd * w
			if g.WeightDecay != 0 {
				floats.AddScaled(grad, g.WeightDecay, w)
			}

			update := grad
			if g.HasMomentum {
				v := s.velocity[p]
				floats.Scale(g.Momentum, v)
				floats.Add(v, grad)
				if s.nesterov {
					// g + mu * v
					update = make([]float64, len(grad))
					copy(update, grad)
					floats.AddScaled(update, g.Momentum, v)
				} else {
					update = v
				}
			}

			floats.AddScaled(w, -g.LR, update)
		}
	}
	s.stepCount++
	return nil
}

// ZeroGrad implements Optimizer.ZeroGrad.
func (s *SGD) ZeroGrad() {
	for _, g := range s.groups {
		for _, p := range g.FloatingParams() {
			if p.Grad == nil {
				continue
			}
			p.Grad.Zero()
		}
	}
}

// State implements Optimizer.State.
func (s *SGD) State() *State {
	buffers := make(map[string][]float64, len(s.velocity))
	for _, g := range s.groups {
		for _, p := range g.FloatingParams() {
			if v, ok := s.velocity[p]; ok {
				buffers[p.Name] = append([]float64(nil), v...)
			}
		}
	}
	return &State{Type: "sgd", StepCount: s.stepCount, Buffers: buffers}
}

// LoadState implements Optimizer.LoadState.
func (s *SGD) LoadState(state *State) error {
	if state.Type != "sgd" {
		return errors.NewValidationError("optimizer_state", "state type mismatch", state.Type)
	}
	s.stepCount = state.StepCount
	for _, g := range s.groups {
		for _, p := range g.FloatingParams() {
			v, ok := state.Buffers[p.Name]
			if !ok {
				continue
			}
			if len(v) != len(s.velocity[p]) {
				return errors.NewDimensionError("SGD.LoadState:"+p.Name, len(s.velocity[p]), len(v), 0)
			}
			copy(s.velocity[p], v)
		}
	}
	return nil
}
