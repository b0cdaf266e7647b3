package detection

import (
	"testing"
)

func TestLossRecordTermOrder(t *testing.T) {
	r := NewLossRecord(LossObj, LossCls, LossBox)
	r.Set(LossCls, 1.5)
	r.Set(LossBox, 0.5)
	r.Set(LossObj, 0.25)
	r.Set(LossTotal, 2.25)

	terms := r.Terms()
	want := []LossTerm{LossCls, LossBox, LossObj, LossTotal}
	if len(terms) != len(want) {
		t.Fatalf("Terms() = %v, want %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("Terms()[%d] = %v, want %v", i, terms[i], want[i])
		}
	}

	values := r.Values()
	wantVals := []float64{1.5, 0.5, 0.25, 2.25}
	for i := range wantVals {
		if values[i] != wantVals[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, values[i], wantVals[i])
		}
	}
}

func TestLossRecordWithValuesIsFresh(t *testing.T) {
	r := NewLossRecord(LossCls)
	r.Set(LossCls, 4)
	r.Set(LossTotal, 4)

	reduced := r.WithValues([]float64{2, 2})

	if v, _ := reduced.Get(LossCls); v != 2 {
		t.Errorf("reduced loss_cls = %v, want 2", v)
	}
	if v, _ := r.Get(LossCls); v != 4 {
		t.Errorf("local record mutated: loss_cls = %v, want 4", v)
	}
}

func TestLossTermNames(t *testing.T) {
	if LossTotal.String() != "losses" {
		t.Errorf("LossTotal.String() = %q, want %q", LossTotal.String(), "losses")
	}
	if LossGIoU.String() != "loss_giou" {
		t.Errorf("LossGIoU.String() = %q", LossGIoU.String())
	}
}
