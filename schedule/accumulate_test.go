package schedule

import "testing"

func TestAccumulatorTarget(t *testing.T) {
	tests := []struct {
		name           string
		referenceBatch int
		actualBatch    int
		want           int
	}{
		{name: "reference 64 batch 16", referenceBatch: 64, actualBatch: 16, want: 4},
		{name: "batch above reference", referenceBatch: 64, actualBatch: 128, want: 1},
		{name: "equal", referenceBatch: 64, actualBatch: 64, want: 1},
		{name: "rounding", referenceBatch: 64, actualBatch: 24, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAccumulator(tt.referenceBatch, tt.actualBatch, 0, true)
			if err != nil {
				t.Fatal(err)
			}
			if got := a.Target(); got != tt.want {
				t.Errorf("Target() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAccumulatorFiringRule(t *testing.T) {
	// No warmup: the window is the fixed target of 4 from the start.
	a, err := NewAccumulator(64, 16, 0, true)
	if err != nil {
		t.Fatal(err)
	}

	var fired []int
	for step := 0; step < 13; step++ {
		a.Update(step)
		if a.ShouldStep(step) {
			fired = append(fired, step)
			a.Advance(step)
		}
	}

	want := []int{4, 8, 12}
	if len(fired) != len(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("fired[%d] = %d, want %d", i, fired[i], want[i])
		}
	}
	if a.LastOptimizerStep() != 12 {
		t.Errorf("LastOptimizerStep() = %d, want 12", a.LastOptimizerStep())
	}
}

func TestAccumulatorWarmupRamp(t *testing.T) {
	const window = 300
	a, err := NewAccumulator(64, 16, window, true)
	if err != nil {
		t.Fatal(err)
	}

	a.Update(0)
	if got := a.Current(); got != 1 {
		t.Errorf("window at step 0 = %d, want 1", got)
	}

	// The window never decreases during the ramp and reaches the target.
	prev := 1
	for step := 0; step <= window; step++ {
		a.Update(step)
		if a.Current() < prev {
			t.Fatalf("window decreased at step %d: %d -> %d", step, prev, a.Current())
		}
		if a.Current() < 1 {
			t.Fatalf("window below 1 at step %d", step)
		}
		prev = a.Current()
	}
	if prev != 4 {
		t.Errorf("window at ramp end = %d, want 4", prev)
	}

	a.Update(window + 1)
	if a.Current() != 4 {
		t.Errorf("window past warmup = %d, want 4", a.Current())
	}
}

func TestAccumulatorDisabledFiresEveryStep(t *testing.T) {
	a, err := NewAccumulator(64, 16, 100, false)
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 5; step++ {
		a.Update(step)
		if !a.ShouldStep(step) {
			t.Fatalf("disabled accumulator refused to step at %d", step)
		}
		a.Advance(step)
	}
	if a.Current() != 1 {
		t.Errorf("Current() = %d, want 1", a.Current())
	}
}

func TestAccumulatorValidation(t *testing.T) {
	if _, err := NewAccumulator(0, 16, 0, true); err == nil {
		t.Error("expected error for zero reference batch")
	}
	if _, err := NewAccumulator(64, 0, 0, true); err == nil {
		t.Error("expected error for zero batch")
	}
}
