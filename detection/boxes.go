// Package detection provides the data model shared by the training
// orchestration core: target boxes and labels, square image batches, and
// per-batch loss records. Box tensors are gonum matrices of shape (N, 4).
package detection

import (
	"gonum.org/v1/gonum/mat"
)

// Encoding selects how target boxes are expressed when handed to the
// criterion. Anchor-based detectors consume corner boxes in pixel units,
// query-based detectors consume center-size boxes normalized by image size.
type Encoding int

const (
	// EncodeCorners is (x1, y1, x2, y2) in pixels.
	EncodeCorners Encoding = iota
	// EncodeCenterNorm is (cx, cy, w, h) divided by the image size.
	EncodeCenterNorm
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodeCorners:
		return "corners"
	case EncodeCenterNorm:
		return "center_norm"
	default:
		return "unknown"
	}
}

// ClampBoxes clamps all coordinates of an (N, 4) corner box matrix to
// [lo, hi] in place.
func ClampBoxes(boxes *mat.Dense, lo, hi float64) {
	if boxes == nil {
		return
	}
	r, c := boxes.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := boxes.At(i, j)
			if v < lo {
				boxes.Set(i, j, lo)
			} else if v > hi {
				boxes.Set(i, j, hi)
			}
		}
	}
}

// ScaleBoxes rescales corner boxes in place, x coordinates (columns 0 and 2)
// by sx and y coordinates (columns 1 and 3) by sy.
func ScaleBoxes(boxes *mat.Dense, sx, sy float64) {
	if boxes == nil {
		return
	}
	r, _ := boxes.Dims()
	for i := 0; i < r; i++ {
		boxes.Set(i, 0, boxes.At(i, 0)*sx)
		boxes.Set(i, 2, boxes.At(i, 2)*sx)
		boxes.Set(i, 1, boxes.At(i, 1)*sy)
		boxes.Set(i, 3, boxes.At(i, 3)*sy)
	}
}

// MinSide returns the smaller of width and height of row i of a corner box
// matrix.
func MinSide(boxes *mat.Dense, i int) float64 {
	w := boxes.At(i, 2) - boxes.At(i, 0)
	h := boxes.At(i, 3) - boxes.At(i, 1)
	if w < h {
		return w
	}
	return h
}

// CornersToCenterNorm converts an (N, 4) corner box matrix in pixel units to
// a fresh center-size matrix normalized by imgSize. A nil or empty input
// yields nil.
func CornersToCenterNorm(boxes *mat.Dense, imgSize float64) *mat.Dense {
	if boxes == nil {
		return nil
	}
	r, _ := boxes.Dims()
	if r == 0 {
		return nil
	}
	out := mat.NewDense(r, 4, nil)
	for i := 0; i < r; i++ {
		x1, y1 := boxes.At(i, 0), boxes.At(i, 1)
		x2, y2 := boxes.At(i, 2), boxes.At(i, 3)
		out.Set(i, 0, (x1+x2)*0.5/imgSize)
		out.Set(i, 1, (y1+y2)*0.5/imgSize)
		out.Set(i, 2, (x2-x1)/imgSize)
		out.Set(i, 3, (y2-y1)/imgSize)
	}
	return out
}

// CenterNormToCorners is the inverse of CornersToCenterNorm: it converts a
// normalized center-size matrix back to corner boxes in pixel units.
func CenterNormToCorners(boxes *mat.Dense, imgSize float64) *mat.Dense {
	if boxes == nil {
		return nil
	}
	r, _ := boxes.Dims()
	if r == 0 {
		return nil
	}
	out := mat.NewDense(r, 4, nil)
	for i := 0; i < r; i++ {
		cx, cy := boxes.At(i, 0)*imgSize, boxes.At(i, 1)*imgSize
		w, h := boxes.At(i, 2)*imgSize, boxes.At(i, 3)*imgSize
		out.Set(i, 0, cx-w*0.5)
		out.Set(i, 1, cy-h*0.5)
		out.Set(i, 2, cx+w*0.5)
		out.Set(i, 3, cy+h*0.5)
	}
	return out
}
