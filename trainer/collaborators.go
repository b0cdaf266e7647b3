package trainer

import (
	"github.com/YuminosukeSato/godet/detection"
	"github.com/YuminosukeSato/godet/solver"
)

// Predictions is the opaque forward-pass output. The orchestrator never
// inspects it; it only carries it from the model to the criterion.
type Predictions interface{}

// Batch is one training micro-batch as produced by the data source.
type Batch struct {
	Images  *detection.ImageBatch
	Targets []*detection.Target
}

// DataSource yields training batches and exposes the augmentation
// probabilities the orchestrator zeroes when entering the reduced
// augmentation stage.
type DataSource interface {
	// Len returns the number of iterations per epoch.
	Len() int

	// Batch returns the micro-batch for the given iteration. Pixel values
	// are in [0, 255]; the orchestrator normalizes them.
	Batch(epoch, iteration int) (*Batch, error)

	// SetEpoch re-seeds the sampler for the epoch, keeping shuffling
	// consistent across distributed workers.
	SetEpoch(epoch int)

	// MosaicProb and MixupProb return the current probabilities of the
	// corresponding augmentations.
	MosaicProb() float64
	MixupProb() float64

	// SetMosaicProb and SetMixupProb override the probabilities, used to
	// close the heavy augmentations near the end of training.
	SetMosaicProb(p float64)
	SetMixupProb(p float64)
}

// Model is the trainable detector. The orchestrator treats the network as
// opaque: it only needs the forward/backward entry points and access to the
// parameters for the optimizer, EMA and checkpointing.
type Model interface {
	// Forward runs the network on a normalized image batch.
	Forward(images *detection.ImageBatch) (Predictions, error)

	// Backward accumulates gradients of the given (scaled) loss into the
	// parameters' Grad tensors. Gradients add up across calls until
	// explicitly zeroed.
	Backward(loss float64) error

	// Parameters returns all named parameters, floating tensors and
	// integer buffers alike, in a stable order.
	Parameters() []*solver.Param

	// SetTraining toggles training mode (batch-norm statistics, dropout).
	SetTraining(training bool)

	// MaxStride returns the largest output stride; sampled multi-scale
	// resolutions are multiples of it.
	MaxStride() int
}

// Criterion computes the loss record for one micro-batch.
type Criterion interface {
	// Compute matches predictions against targets. Box encoding of the
	// targets follows the family; imgSize is the current square resolution.
	Compute(preds Predictions, targets []*detection.Target, imgSize int) (*detection.LossRecord, error)
}

// Evaluator measures detection quality on a held-out set. A nil evaluator
// is valid; checkpoints are then written unconditionally at eval boundaries.
type Evaluator interface {
	// Evaluate runs validation with the given weights and returns mAP.
	Evaluate(params []*solver.Param) (float64, error)
}
