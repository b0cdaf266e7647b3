package schedule

import (
	"math"

	"github.com/YuminosukeSato/godet/pkg/errors"
	"github.com/YuminosukeSato/godet/solver"
)

// Schedule is the post-warmup per-epoch learning-rate decay function. The
// factor multiplies each group's InitialLR; Factor(0) is 1 for all provided
// implementations.
type Schedule interface {
	Factor(epoch int) float64
}

// LinearDecay decays the factor linearly from 1 at epoch 0 to FinalFactor at
// MaxEpoch.
type LinearDecay struct {
	MaxEpoch    int
	FinalFactor float64
}

// Factor implements Schedule.
func (s LinearDecay) Factor(epoch int) float64 {
	x := float64(epoch) / float64(s.MaxEpoch)
	return (1-x)*(1-s.FinalFactor) + s.FinalFactor
}

// CosineDecay follows half a cosine period from 1 at epoch 0 to FinalFactor
// at MaxEpoch.
type CosineDecay struct {
	MaxEpoch    int
	FinalFactor float64
}

// Factor implements Schedule.
func (s CosineDecay) Factor(epoch int) float64 {
	x := float64(epoch) / float64(s.MaxEpoch)
	return s.FinalFactor + 0.5*(1-s.FinalFactor)*(1+math.Cos(math.Pi*x))
}

// NewSchedule builds a named schedule. Supported names: "linear", "cosine".
func NewSchedule(name string, maxEpoch int, finalFactor float64) (Schedule, error) {
	if maxEpoch <= 0 {
		return nil, errors.NewValidationError("max_epoch", "must be positive", maxEpoch)
	}
	switch name {
	case "linear":
		return LinearDecay{MaxEpoch: maxEpoch, FinalFactor: finalFactor}, nil
	case "cosine":
		return CosineDecay{MaxEpoch: maxEpoch, FinalFactor: finalFactor}, nil
	default:
		return nil, errors.NewValidationError("lr_schedule", "unknown schedule", name)
	}
}

// ApplyEpoch sets every group's learning rate to InitialLR*Factor(epoch).
// Called once per epoch after warmup has ended; during warmup the factor
// feeds the warmup target instead.
func ApplyEpoch(groups []*solver.Group, sched Schedule, epoch int) {
	f := sched.Factor(epoch)
	for _, g := range groups {
		g.LR = g.InitialLR * f
	}
}
