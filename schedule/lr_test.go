package schedule

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/godet/solver"
)

func TestLinearDecayEndpoints(t *testing.T) {
	const tolerance = 1e-12
	s := LinearDecay{MaxEpoch: 300, FinalFactor: 0.01}

	if got := s.Factor(0); math.Abs(got-1) > tolerance {
		t.Errorf("Factor(0) = %v, want 1", got)
	}
	if got := s.Factor(300); math.Abs(got-0.01) > tolerance {
		t.Errorf("Factor(300) = %v, want 0.01", got)
	}
	if got := s.Factor(150); math.Abs(got-0.505) > tolerance {
		t.Errorf("Factor(150) = %v, want 0.505", got)
	}
}

func TestCosineDecayEndpoints(t *testing.T) {
	const tolerance = 1e-12
	s := CosineDecay{MaxEpoch: 100, FinalFactor: 0.05}

	if got := s.Factor(0); math.Abs(got-1) > tolerance {
		t.Errorf("Factor(0) = %v, want 1", got)
	}
	if got := s.Factor(100); math.Abs(got-0.05) > tolerance {
		t.Errorf("Factor(100) = %v, want 0.05", got)
	}
	// Halfway point sits at the midpoint of the cosine.
	if got := s.Factor(50); math.Abs(got-0.525) > tolerance {
		t.Errorf("Factor(50) = %v, want 0.525", got)
	}
}

func TestCosineDecayMonotone(t *testing.T) {
	s := CosineDecay{MaxEpoch: 50, FinalFactor: 0.1}
	prev := s.Factor(0)
	for e := 1; e <= 50; e++ {
		cur := s.Factor(e)
		if cur > prev {
			t.Fatalf("factor increased at epoch %d: %v -> %v", e, prev, cur)
		}
		prev = cur
	}
}

func TestNewSchedule(t *testing.T) {
	if _, err := NewSchedule("linear", 100, 0.01); err != nil {
		t.Errorf("linear schedule: %v", err)
	}
	if _, err := NewSchedule("cosine", 100, 0.01); err != nil {
		t.Errorf("cosine schedule: %v", err)
	}
	if _, err := NewSchedule("step", 100, 0.01); err == nil {
		t.Error("expected error for unknown schedule")
	}
	if _, err := NewSchedule("linear", 0, 0.01); err == nil {
		t.Error("expected error for zero max epoch")
	}
}

func TestApplyEpoch(t *testing.T) {
	const tolerance = 1e-12

	groups := []*solver.Group{
		{Name: "bias", InitialLR: 0.01, Params: []*solver.Param{{Name: "b", Value: mat.NewDense(1, 1, nil)}}},
		{Name: "weights", InitialLR: 0.01},
	}
	ApplyEpoch(groups, LinearDecay{MaxEpoch: 100, FinalFactor: 0.1}, 100)

	for _, g := range groups {
		if math.Abs(g.LR-0.001) > tolerance {
			t.Errorf("group %s LR = %v, want 0.001", g.Name, g.LR)
		}
	}
}
