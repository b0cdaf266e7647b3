package trainer

import (
	"math"
	"testing"
)

func TestEffectiveHyperparams(t *testing.T) {
	const tolerance = 1e-12

	tests := []struct {
		name      string
		family    Family
		batchSize int
		lr0       float64
		wd        float64
		wantLR    float64
		wantWD    float64
	}{
		{
			// accumulate = round(64/24) = 3, wd *= 24*3/64
			name:   "yolo rescales weight decay",
			family: FamilyYOLO, batchSize: 24, lr0: 0.01, wd: 5e-4,
			wantLR: 0.01, wantWD: 5e-4 * 24 * 3 / 64,
		},
		{
			name:   "yolo at reference batch is neutral",
			family: FamilyYOLO, batchSize: 64, lr0: 0.01, wd: 5e-4,
			wantLR: 0.01, wantWD: 5e-4,
		},
		{
			name:   "rtmdet rescales lr by batch over 64",
			family: FamilyRTMDet, batchSize: 32, lr0: 0.01, wd: 5e-4,
			wantLR: 0.005, wantWD: 5e-4,
		},
		{
			name:   "detr rescales lr by batch over 16",
			family: FamilyDETR, batchSize: 8, lr0: 1e-4, wd: 1e-4,
			wantLR: 5e-5, wantWD: 1e-4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(tt.family, "m")
			cfg.BatchSize = tt.batchSize
			cfg.LR0 = tt.lr0
			cfg.WeightDecay = tt.wd

			lr, wd := cfg.effectiveHyperparams(behaviorFor(tt.family))
			if math.Abs(lr-tt.wantLR) > tolerance {
				t.Errorf("lr = %v, want %v", lr, tt.wantLR)
			}
			if math.Abs(wd-tt.wantWD) > tolerance {
				t.Errorf("wd = %v, want %v", wd, tt.wantWD)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := NewConfig(FamilyYOLO, "yolov3")
	if err := cfg.Validate(); err != nil {
		t.Errorf("stock config invalid: %v", err)
	}

	bad := cfg
	bad.ModelName = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty model name")
	}

	bad = cfg
	bad.BatchSize = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero batch size")
	}

	bad = cfg
	bad.FinalLRFactor = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero final lr factor")
	}
}

func TestParseFamily(t *testing.T) {
	for _, s := range []string{"yolo", "rtmdet", "detr"} {
		f, err := ParseFamily(s)
		if err != nil {
			t.Errorf("ParseFamily(%q): %v", s, err)
		}
		if f.String() != s {
			t.Errorf("round trip %q -> %q", s, f.String())
		}
	}
	if _, err := ParseFamily("ssd"); err == nil {
		t.Error("expected error for unknown family")
	}
}
