package trainer

import (
	"io"
	"math"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// Config collects the run hyperparameters. NewConfig seeds the values
// shared by all families; the per-family batch-size rescaling of learning
// rate and weight decay happens inside New, against the family's reference
// batch size.
type Config struct {
	Family    Family
	ModelName string

	// MaxEpoch is the number of training epochs past warmup. The effective
	// schedule length is MaxEpoch + WarmupEpochs.
	MaxEpoch     int
	WarmupEpochs int
	// EvalEpoch is the evaluation cadence in epochs.
	EvalEpoch int
	// NoAugEpoch is the length of the final reduced-augmentation stage.
	NoAugEpoch int

	BatchSize int
	ImgSize   int

	MultiScale      bool
	MultiScaleRange [2]float64
	MinBoxSize      float64

	// ClipGrad is the maximum global gradient norm; non-positive disables
	// clipping.
	ClipGrad float64
	// MixedPrecision enables dynamic loss scaling.
	MixedPrecision bool

	EMA      bool
	EMADecay float64
	EMATau   float64

	LR0            float64
	FinalLRFactor  float64
	ScheduleName   string
	Momentum       float64
	WeightDecay    float64
	WarmupBiasLR   float64
	WarmupMomentum float64

	// SaveDir is the checkpoint directory.
	SaveDir string
	// Resume is an optional checkpoint path to continue from.
	Resume string
	// Seed drives the multi-scale sampler.
	Seed int64

	// LogAuxLoss includes auxiliary decoder losses in progress lines for
	// families that hide them by default.
	LogAuxLoss bool
	// LogInterval is the progress-line cadence in iterations.
	LogInterval int
	// Progress receives the per-iteration progress lines. Nil silences
	// them.
	Progress io.Writer

	// VisTargets dumps every augmented batch with its target overlays as
	// PNG files under the checkpoint directory. Debugging aid for the data
	// pipeline; slows training considerably.
	VisTargets bool
}

// NewConfig returns a config with the stock hyperparameters for the family.
func NewConfig(family Family, modelName string) Config {
	cfg := Config{
		Family:          family,
		ModelName:       modelName,
		MaxEpoch:        300,
		WarmupEpochs:    3,
		EvalEpoch:       10,
		NoAugEpoch:      20,
		BatchSize:       16,
		ImgSize:         640,
		MultiScale:      true,
		MultiScaleRange: [2]float64{0.5, 1.5},
		MinBoxSize:      8,
		ClipGrad:        10,
		EMA:             true,
		EMADecay:        0.9999,
		EMATau:          2000,
		LR0:             0.01,
		FinalLRFactor:   0.01,
		ScheduleName:    "linear",
		Momentum:        0.937,
		WeightDecay:     5e-4,
		WarmupBiasLR:    0.1,
		WarmupMomentum:  0.8,
		SaveDir:         "weights",
		LogInterval:     10,
	}
	if family == FamilyDETR {
		cfg.LR0 = 1e-4
		cfg.WeightDecay = 1e-4
		cfg.ClipGrad = 0.1
		cfg.WarmupEpochs = 0
	}
	return cfg
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return errors.NewValidationError("model_name", "must not be empty", c.ModelName)
	}
	if c.MaxEpoch <= 0 {
		return errors.NewValidationError("max_epoch", "must be positive", c.MaxEpoch)
	}
	if c.WarmupEpochs < 0 {
		return errors.NewValidationError("warmup_epochs", "must not be negative", c.WarmupEpochs)
	}
	if c.EvalEpoch <= 0 {
		return errors.NewValidationError("eval_epoch", "must be positive", c.EvalEpoch)
	}
	if c.NoAugEpoch < 0 {
		return errors.NewValidationError("no_aug_epoch", "must not be negative", c.NoAugEpoch)
	}
	if c.BatchSize <= 0 {
		return errors.NewValidationError("batch_size", "must be positive", c.BatchSize)
	}
	if c.ImgSize <= 0 {
		return errors.NewValidationError("img_size", "must be positive", c.ImgSize)
	}
	if c.LR0 <= 0 {
		return errors.NewValidationError("lr0", "must be positive", c.LR0)
	}
	if c.FinalLRFactor <= 0 || c.FinalLRFactor > 1 {
		return errors.NewValidationError("final_lr_factor", "must be in (0, 1]", c.FinalLRFactor)
	}
	if c.LogInterval <= 0 {
		return errors.NewValidationError("log_interval", "must be positive", c.LogInterval)
	}
	return nil
}

// effectiveHyperparams applies the family's batch-size rescaling and
// returns the learning rate and weight decay to build the optimizer with.
func (c *Config) effectiveHyperparams(b behavior) (lr0, weightDecay float64) {
	lr0, weightDecay = c.LR0, c.WeightDecay
	if b.rescaleLR0 {
		lr0 *= float64(c.BatchSize) / float64(b.referenceBatch)
	}
	if b.rescaleWD {
		accumulate := math.Max(1, math.Round(float64(b.referenceBatch)/float64(c.BatchSize)))
		weightDecay *= float64(c.BatchSize) * accumulate / float64(b.referenceBatch)
	}
	return lr0, weightDecay
}
