// Package schedule implements the numeric schedules that drive a training
// run: the global step clock, the warmup interpolation of learning rate and
// momentum, the post-warmup per-epoch decay and the gradient accumulation
// window ramp. All schedules are pure computations over the global step so
// every process of a distributed run derives identical values.
package schedule

// Clock converts (epoch, iteration) pairs into the single monotonic global
// step counter and derives warmup window boundaries.
type Clock struct {
	StepsPerEpoch int
}

// GlobalStep returns iteration + epoch*stepsPerEpoch.
func (c Clock) GlobalStep(epoch, iteration int) int {
	return iteration + epoch*c.StepsPerEpoch
}

// WarmupWindow returns the warmup length in steps.
func (c Clock) WarmupWindow(warmupEpochs int) int {
	return warmupEpochs * c.StepsPerEpoch
}
