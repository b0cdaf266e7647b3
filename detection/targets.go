package detection

import (
	"gonum.org/v1/gonum/mat"
)

// Target holds the annotated boxes and class labels of a single image.
// Boxes is an (N, 4) matrix; a nil Boxes means the image has no targets.
// Targets are produced by the dataset collaborator and transformed by the
// orchestrator before being handed to the criterion.
type Target struct {
	Boxes  *mat.Dense
	Labels []int
}

// NumBoxes returns the number of target boxes.
func (t *Target) NumBoxes() int {
	if t == nil || t.Boxes == nil {
		return 0
	}
	r, _ := t.Boxes.Dims()
	return r
}

// Clone returns a deep copy of the target. Filtering and rescaling always
// operate on clones so the caller's originals stay usable, e.g. for
// visualization.
func (t *Target) Clone() *Target {
	if t == nil {
		return nil
	}
	out := &Target{Labels: append([]int(nil), t.Labels...)}
	if t.Boxes != nil {
		out.Boxes = mat.DenseCopyOf(t.Boxes)
	}
	return out
}

// selectRows builds a fresh target keeping only the rows flagged in keep.
func (t *Target) selectRows(boxes *mat.Dense, keep []bool) *Target {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	if kept == 0 {
		return &Target{}
	}
	outBoxes := mat.NewDense(kept, 4, nil)
	outLabels := make([]int, 0, kept)
	row := 0
	for i, k := range keep {
		if !k {
			continue
		}
		for j := 0; j < 4; j++ {
			outBoxes.Set(row, j, boxes.At(i, j))
		}
		outLabels = append(outLabels, t.Labels[i])
		row++
	}
	return &Target{Boxes: outBoxes, Labels: outLabels}
}

// FilterTarget removes boxes whose smaller side is below minBoxSize.
// The boundary is inclusive: a box of exactly minBoxSize is kept. The input
// is never mutated; the result is a fresh target.
func FilterTarget(t *Target, minBoxSize float64) *Target {
	n := t.NumBoxes()
	if n == 0 {
		return &Target{}
	}
	keep := make([]bool, n)
	for i := 0; i < n; i++ {
		keep[i] = MinSide(t.Boxes, i) >= minBoxSize
	}
	return t.selectRows(t.Boxes, keep)
}

// FilterTargets applies FilterTarget to every target of a batch.
func FilterTargets(targets []*Target, minBoxSize float64) []*Target {
	out := make([]*Target, len(targets))
	for i, t := range targets {
		out[i] = FilterTarget(t, minBoxSize)
	}
	return out
}
