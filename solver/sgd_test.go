package solver

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSGDStepPlain(t *testing.T) {
	const tolerance = 1e-12

	p := &Param{
		Name:  "w",
		Value: mat.NewDense(1, 2, []float64{1.0, -1.0}),
		Grad:  mat.NewDense(1, 2, []float64{0.5, 0.25}),
	}
	groups := []*Group{{Name: "weights", Params: []*Param{p}, LR: 0.1}}
	opt, err := NewSGD(groups, false)
	if err != nil {
		t.Fatal(err)
	}

	if err := opt.Step(); err != nil {
		t.Fatal(err)
	}

	want := []float64{1.0 - 0.1*0.5, -1.0 - 0.1*0.25}
	for j, w := range want {
		if got := p.Value.At(0, j); math.Abs(got-w) > tolerance {
			t.Errorf("w[%d] = %v, want %v", j, got, w)
		}
	}
	if opt.StepCount() != 1 {
		t.Errorf("StepCount() = %d, want 1", opt.StepCount())
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	const tolerance = 1e-12

	p := &Param{
		Name:  "w",
		Value: mat.NewDense(1, 1, []float64{0}),
		Grad:  mat.NewDense(1, 1, []float64{1}),
	}
	groups := []*Group{{
		Name:        "weights",
		Params:      []*Param{p},
		LR:          1.0,
		Momentum:    0.9,
		HasMomentum: true,
	}}
	opt, err := NewSGD(groups, false)
	if err != nil {
		t.Fatal(err)
	}

	// v1 = 1, w = -1; v2 = 0.9*1 + 1 = 1.9, w = -1 - 1.9 = -2.9
	if err := opt.Step(); err != nil {
		t.Fatal(err)
	}
	if err := opt.Step(); err != nil {
		t.Fatal(err)
	}

	if got := p.Value.At(0, 0); math.Abs(got-(-2.9)) > tolerance {
		t.Errorf("w = %v, want -2.9", got)
	}
}

func TestSGDZeroGrad(t *testing.T) {
	p := &Param{
		Name:  "w",
		Value: mat.NewDense(1, 1, []float64{0}),
		Grad:  mat.NewDense(1, 1, []float64{3}),
	}
	opt, err := NewSGD([]*Group{{Name: "weights", Params: []*Param{p}}}, false)
	if err != nil {
		t.Fatal(err)
	}
	opt.ZeroGrad()
	if got := p.Grad.At(0, 0); got != 0 {
		t.Errorf("grad = %v after ZeroGrad", got)
	}
}

func TestSGDStateRoundTrip(t *testing.T) {
	p := &Param{
		Name:  "w",
		Value: mat.NewDense(1, 1, []float64{0}),
		Grad:  mat.NewDense(1, 1, []float64{1}),
	}
	groups := []*Group{{
		Name:        "weights",
		Params:      []*Param{p},
		LR:          0.5,
		Momentum:    0.9,
		HasMomentum: true,
	}}
	opt, _ := NewSGD(groups, false)
	if err := opt.Step(); err != nil {
		t.Fatal(err)
	}
	state := opt.State()

	restored, _ := NewSGD(groups, false)
	if err := restored.LoadState(state); err != nil {
		t.Fatal(err)
	}
	if restored.StepCount() != 1 {
		t.Errorf("restored StepCount() = %d, want 1", restored.StepCount())
	}
	if got := restored.velocity[p][0]; got != 1 {
		t.Errorf("restored velocity = %v, want 1", got)
	}
}

func TestClipGradNorm(t *testing.T) {
	const tolerance = 1e-12

	p := &Param{
		Name:  "w",
		Value: mat.NewDense(1, 2, nil),
		Grad:  mat.NewDense(1, 2, []float64{3, 4}),
	}
	groups := []*Group{{Name: "weights", Params: []*Param{p}}}

	norm := ClipGradNorm(groups, 10)
	if math.Abs(norm-5) > tolerance {
		t.Errorf("norm = %v, want 5", norm)
	}
	if got := p.Grad.At(0, 0); got != 3 {
		t.Errorf("grad changed though norm below threshold: %v", got)
	}

	ClipGradNorm(groups, 1)
	if got := p.Grad.At(0, 1); math.Abs(got-0.8) > tolerance {
		t.Errorf("clipped grad = %v, want 0.8", got)
	}
}

func TestCheckFinite(t *testing.T) {
	p := &Param{
		Name:  "w",
		Value: mat.NewDense(1, 2, nil),
		Grad:  mat.NewDense(1, 2, []float64{1, 2}),
	}
	groups := []*Group{{Name: "weights", Params: []*Param{p}}}

	if err := CheckFinite(groups, 7); err != nil {
		t.Errorf("CheckFinite() = %v for finite gradients", err)
	}

	p.Grad.Set(0, 1, math.NaN())
	if err := CheckFinite(groups, 7); err == nil {
		t.Error("expected error for NaN gradient")
	}
}
