// Package augment holds the batch-level training-time augmentations applied
// by the orchestrator after the data loader: random multi-scale resizing
// with target rescaling, and the degenerate-box filter.
package augment

import (
	"math/rand"

	"github.com/YuminosukeSato/godet/detection"
	"github.com/YuminosukeSato/godet/pkg/errors"
)

// MultiScale randomly resizes a batch to a stride-aligned resolution and
// rescales its targets to match. One MultiScale instance serves one
// training goroutine; its random source is not safe for concurrent use.
type MultiScale struct {
	stride     int
	minBoxSize float64
	lo, hi     float64
	rng        *rand.Rand
}

// NewMultiScale builds the augmenter. stride is the largest output stride
// of the model, so every sampled resolution divides evenly into feature
// maps. rangeLo and rangeHi bound the new size as fractions of the current
// one, typically 0.5 and 1.5.
func NewMultiScale(stride int, minBoxSize, rangeLo, rangeHi float64, seed int64) (*MultiScale, error) {
	if stride <= 0 {
		return nil, errors.NewValidationError("stride", "must be positive", stride)
	}
	if rangeLo <= 0 || rangeHi < rangeLo {
		return nil, errors.NewValidationError("multi_scale_range", "must satisfy 0 < lo <= hi", []float64{rangeLo, rangeHi})
	}
	return &MultiScale{
		stride:     stride,
		minBoxSize: minBoxSize,
		lo:         rangeLo,
		hi:         rangeHi,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// SampleSize draws a new square resolution for the given current size. The
// raw sample is uniform over [size*lo, size*hi + stride) and floored to a
// stride multiple, which makes the top of the range reachable.
func (m *MultiScale) SampleSize(oldSize int) int {
	lo := int(float64(oldSize) * m.lo)
	hi := int(float64(oldSize)*m.hi) + m.stride
	raw := lo + m.rng.Intn(hi-lo)
	return raw / m.stride * m.stride
}

// Apply resizes the batch to a freshly sampled resolution and rescales the
// targets: clamp to the old canvas, scale by the size ratio, then drop
// boxes that fell below the minimum size. Targets are never mutated; the
// returned slice holds fresh targets even when the size is unchanged.
func (m *MultiScale) Apply(images *detection.ImageBatch, targets []*detection.Target) (*detection.ImageBatch, []*detection.Target, int, error) {
	oldSize := images.Size()
	newSize := m.SampleSize(oldSize)

	resized, err := images.Resize(newSize)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "multi-scale resize")
	}

	ratio := float64(newSize) / float64(oldSize)
	out := make([]*detection.Target, len(targets))
	for i, t := range targets {
		c := t.Clone()
		detection.ClampBoxes(c.Boxes, 0, float64(oldSize))
		detection.ScaleBoxes(c.Boxes, ratio, ratio)
		out[i] = detection.FilterTarget(c, m.minBoxSize)
	}
	return resized, out, newSize, nil
}
