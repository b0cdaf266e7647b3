// Package solver holds the optimizer-side machinery of the training core:
// parameter groups, a momentum SGD optimizer, dynamic loss scaling for mixed
// precision, gradient-norm clipping and the EMA weight shadow.
package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// Param is a single named model tensor together with its gradient, or an
// integer buffer (e.g. a batch-norm counter) that is carried along but never
// trained.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
	Ints  []int64 // set for non-floating buffers; Value and Grad are nil then
}

// Floating reports whether the parameter is a trainable float tensor.
func (p *Param) Floating() bool { return p.Value != nil }

// Clone returns a deep copy of the parameter.
func (p *Param) Clone() *Param {
	out := &Param{Name: p.Name}
	if p.Value != nil {
		out.Value = mat.DenseCopyOf(p.Value)
	}
	if p.Grad != nil {
		out.Grad = mat.DenseCopyOf(p.Grad)
	}
	if p.Ints != nil {
		out.Ints = append([]int64(nil), p.Ints...)
	}
	return out
}

// Group is a named subset of model parameters sharing one learning rate,
// momentum and weight decay. InitialLR is fixed at construction; LR and
// Momentum are mutated every step during warmup and every epoch afterwards.
// By convention group 0 is the bias group.
type Group struct {
	Name        string
	Params      []*Param
	InitialLR   float64
	LR          float64
	Momentum    float64
	HasMomentum bool
	WeightDecay float64
}

// FloatingParams returns the trainable parameters of the group.
func (g *Group) FloatingParams() []*Param {
	out := make([]*Param, 0, len(g.Params))
	for _, p := range g.Params {
		if p.Floating() {
			out = append(out, p)
		}
	}
	return out
}

// GradNorm computes the global L2 norm over all gradients of the given
// groups.
func GradNorm(groups []*Group) float64 {
	var sumSq float64
	for _, g := range groups {
		for _, p := range g.FloatingParams() {
			if p.Grad == nil {
				continue
			}
			norm := floats.Norm(p.Grad.RawMatrix().Data, 2)
			sumSq += norm * norm
		}
	}
	return math.Sqrt(sumSq)
}

// ClipGradNorm rescales all gradients of the given groups so their global L2
// norm does not exceed maxNorm. It returns the norm measured before
// clipping. A non-positive maxNorm leaves the gradients untouched.
func ClipGradNorm(groups []*Group, maxNorm float64) float64 {
	norm := GradNorm(groups)
	if maxNorm <= 0 || norm <= maxNorm || norm == 0 {
		return norm
	}
	scale := maxNorm / norm
	for _, g := range groups {
		for _, p := range g.FloatingParams() {
			if p.Grad == nil {
				continue
			}
			floats.Scale(scale, p.Grad.RawMatrix().Data)
		}
	}
	return norm
}

// CheckFinite returns an error if any gradient of the given groups contains
// a NaN or Inf value.
func CheckFinite(groups []*Group, globalStep int) error {
	for _, g := range groups {
		for _, p := range g.FloatingParams() {
			if p.Grad == nil {
				continue
			}
			if err := errors.CheckNumericalStability("gradients:"+p.Name, p.Grad.RawMatrix().Data, globalStep); err != nil {
				return err
			}
		}
	}
	return nil
}
