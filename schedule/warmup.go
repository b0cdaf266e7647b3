package schedule

import (
	"github.com/YuminosukeSato/godet/solver"
)

// interp linearly interpolates y between (0, y0) and (window, y1), clamped
// at the boundaries. A zero-length window assigns the target immediately.
func interp(step, window int, y0, y1 float64) float64 {
	if window <= 0 || step >= window {
		return y1
	}
	if step <= 0 {
		return y0
	}
	t := float64(step) / float64(window)
	return y0 + (y1-y0)*t
}

// WarmupConfig describes the warmup window and its boundary values.
type WarmupConfig struct {
	// Window is the warmup length in global steps.
	Window int
	// BiasLR is the starting learning rate of group 0 when BiasCurve is
	// set; it decays toward the group's target while every other group
	// rises from zero.
	BiasLR float64
	// BiasCurve enables the distinct group-0 curve. The query-based family
	// warms all groups from zero.
	BiasCurve bool
	// WarmupMomentum and Momentum bound the momentum interpolation for
	// groups that define momentum.
	WarmupMomentum float64
	Momentum       float64
}

// Warmup performs the piecewise-linear ramp of learning rate and momentum
// over the first Window global steps.
type Warmup struct {
	cfg WarmupConfig
}

// NewWarmup returns a warmup scheduler.
func NewWarmup(cfg WarmupConfig) *Warmup {
	return &Warmup{cfg: cfg}
}

// Active reports whether the warmup still owns the schedule at the given
// global step. The boundary step itself is still warmed, matching the
// original inclusive window.
func (w *Warmup) Active(globalStep int) bool {
	return globalStep <= w.cfg.Window
}

// Apply interpolates each group's learning rate and momentum for the given
// global step. The per-group target is InitialLR scaled by the epoch decay
// factor evaluated at the current epoch, so the target itself drifts as
// epochs advance inside a multi-epoch warmup window. That drift is
// intentional.
func (w *Warmup) Apply(globalStep, epoch int, groups []*solver.Group, sched Schedule) {
	if !w.Active(globalStep) {
		return
	}
	factor := sched.Factor(epoch)
	for j, g := range groups {
		start := 0.0
		if j == 0 && w.cfg.BiasCurve {
			start = w.cfg.BiasLR
		}
		g.LR = interp(globalStep, w.cfg.Window, start, g.InitialLR*factor)
		if g.HasMomentum {
			g.Momentum = interp(globalStep, w.cfg.Window, w.cfg.WarmupMomentum, w.cfg.Momentum)
		}
	}
}
