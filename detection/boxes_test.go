package detection

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestClampBoxes(t *testing.T) {
	boxes := mat.NewDense(2, 4, []float64{
		-5, 10, 650, 630,
		100, -2, 200, 700,
	})
	ClampBoxes(boxes, 0, 640)

	want := []float64{0, 10, 640, 630, 100, 0, 200, 640}
	for i := 0; i < 2; i++ {
		for j := 0; j < 4; j++ {
			if got := boxes.At(i, j); got != want[i*4+j] {
				t.Errorf("boxes[%d][%d] = %v, want %v", i, j, got, want[i*4+j])
			}
		}
	}
}

func TestScaleBoxes(t *testing.T) {
	boxes := mat.NewDense(1, 4, []float64{10, 20, 110, 220})
	ScaleBoxes(boxes, 0.5, 2.0)

	want := []float64{5, 40, 55, 440}
	for j := 0; j < 4; j++ {
		if got := boxes.At(0, j); got != want[j] {
			t.Errorf("boxes[0][%d] = %v, want %v", j, got, want[j])
		}
	}
}

func TestCornerCenterRoundTrip(t *testing.T) {
	const imgSize = 640.0
	const tolerance = 1e-9

	tests := []struct {
		name string
		box  []float64
	}{
		{name: "centered box", box: []float64{100, 100, 300, 300}},
		{name: "thin box", box: []float64{12.5, 48, 13.5, 600}},
		{name: "corner box", box: []float64{0, 0, 32, 32}},
		{name: "full image", box: []float64{0, 0, 640, 640}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corners := mat.NewDense(1, 4, append([]float64(nil), tt.box...))
			center := CornersToCenterNorm(corners, imgSize)
			back := CenterNormToCorners(center, imgSize)

			for j := 0; j < 4; j++ {
				if math.Abs(back.At(0, j)-tt.box[j]) > tolerance {
					t.Errorf("round trip coord %d = %v, want %v", j, back.At(0, j), tt.box[j])
				}
			}
		})
	}
}

func TestCornersToCenterNormValues(t *testing.T) {
	const tolerance = 1e-12
	corners := mat.NewDense(1, 4, []float64{160, 160, 480, 480})
	center := CornersToCenterNorm(corners, 640)

	want := []float64{0.5, 0.5, 0.5, 0.5}
	for j := 0; j < 4; j++ {
		if math.Abs(center.At(0, j)-want[j]) > tolerance {
			t.Errorf("center[%d] = %v, want %v", j, center.At(0, j), want[j])
		}
	}
}

func TestCenterNormEmptyInput(t *testing.T) {
	if got := CornersToCenterNorm(nil, 640); got != nil {
		t.Errorf("CornersToCenterNorm(nil) = %v, want nil", got)
	}
	if got := CenterNormToCorners(nil, 640); got != nil {
		t.Errorf("CenterNormToCorners(nil) = %v, want nil", got)
	}
}
