// Package trainer implements the training orchestration core for object
// detection models. It drives the epoch and iteration loops over opaque
// model, criterion, dataset and evaluator collaborators, owning the
// schedule (warmup, epoch decay, gradient accumulation), mixed-precision
// loss scaling, the EMA weight shadow, multi-scale augmentation, loss
// reduction across workers and checkpointing.
package trainer

import (
	"github.com/YuminosukeSato/godet/detection"
	"github.com/YuminosukeSato/godet/pkg/errors"
)

// Family identifies the detector lineage being trained. The families share
// one orchestration loop and differ in a small set of behaviors captured by
// the behavior table below.
type Family int

const (
	// FamilyYOLO covers anchor-based one-stage detectors trained with SGD
	// and gradient accumulation.
	FamilyYOLO Family = iota
	// FamilyRTMDet covers anchor-free one-stage detectors; same optimizer
	// lineage as YOLO but without accumulation.
	FamilyRTMDet
	// FamilyDETR covers query-based detectors trained with AdamW on
	// normalized center-size boxes.
	FamilyDETR
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyYOLO:
		return "yolo"
	case FamilyRTMDet:
		return "rtmdet"
	case FamilyDETR:
		return "detr"
	default:
		return "unknown"
	}
}

// ParseFamily maps a configuration string to a Family.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "yolo":
		return FamilyYOLO, nil
	case "rtmdet":
		return FamilyRTMDet, nil
	case "detr":
		return FamilyDETR, nil
	default:
		return 0, errors.NewUnknownTrainerError(s)
	}
}

// behavior is the per-family variation table. Everything not listed here is
// common to all families.
type behavior struct {
	// accumulate enables the gradient accumulation window derived from the
	// reference batch size.
	accumulate bool
	// biasCurve gives parameter group 0 the falling warmup curve starting
	// at warmup_bias_lr instead of rising from zero.
	biasCurve bool
	// scaleLossByBatch multiplies the backward loss by the per-process
	// batch size before backpropagation.
	scaleLossByBatch bool
	// scaleLossByWorld additionally multiplies by the world size in
	// distributed runs, compensating the gradient averaging of the
	// data-parallel wrapper.
	scaleLossByWorld bool
	// encoding selects the box encoding handed to the criterion.
	encoding detection.Encoding
	// logLRGroup is the parameter group whose learning rate appears in
	// progress lines.
	logLRGroup int
	// referenceBatch is the batch size the published hyperparameters were
	// tuned for.
	referenceBatch int
	// rescaleWD multiplies weight decay by batch*accumulate/reference.
	rescaleWD bool
	// rescaleLR0 multiplies the base learning rate by batch/reference.
	rescaleLR0 bool
	// adamW selects AdamW over momentum SGD.
	adamW bool
	// defaultLogTerms restricts progress lines to these loss terms when
	// the configuration does not ask for the full set. Nil logs everything
	// the criterion declares.
	defaultLogTerms []detection.LossTerm
}

func behaviorFor(f Family) behavior {
	switch f {
	case FamilyYOLO:
		return behavior{
			accumulate:       true,
			biasCurve:        true,
			scaleLossByBatch: true,
			scaleLossByWorld: true,
			encoding:         detection.EncodeCorners,
			logLRGroup:       2,
			referenceBatch:   64,
			rescaleWD:        true,
		}
	case FamilyRTMDet:
		return behavior{
			biasCurve:      true,
			encoding:       detection.EncodeCorners,
			logLRGroup:     2,
			referenceBatch: 64,
			rescaleLR0:     true,
		}
	case FamilyDETR:
		return behavior{
			encoding:       detection.EncodeCenterNorm,
			logLRGroup:     0,
			referenceBatch: 16,
			rescaleLR0:     true,
			adamW:          true,
			defaultLogTerms: []detection.LossTerm{
				detection.LossCls, detection.LossBox, detection.LossGIoU, detection.LossTotal,
			},
		}
	default:
		return behavior{}
	}
}
