// Package log defines standard attribute keys for detection training runs.
//
// Using these keys consistently enables log analysis and monitoring across
// long multi-epoch runs and across the ranks of a distributed job. The keys
// follow a hierarchical naming convention (e.g. "training.epoch",
// "dist.rank") for structured filtering.

package log

// Trainer and Run Context
const (
	// TrainerFamilyKey identifies the detector family being trained.
	// Standard values: "yolo", "rtmdet", "detr"
	TrainerFamilyKey = "trainer.family"

	// ModelNameKey identifies the concrete model being trained.
	// Examples: "yolov8_small", "rtmdet_tiny"
	ModelNameKey = "model.name"

	// OperationKey specifies the training operation being performed.
	// Standard values: "train", "eval", "checkpoint", "warmup"
	OperationKey = "train.operation"

	// StageKey indicates the augmentation stage of the run.
	// Values: "full", "reduced_augmentation"
	StageKey = "train.stage"
)

// Training Progress
const (
	// EpochKey records the current epoch index.
	EpochKey = "training.epoch"

	// IterationKey records the iteration index within the current epoch.
	IterationKey = "training.iteration"

	// GlobalStepKey records the monotonic global step counter.
	GlobalStepKey = "training.global_step"

	// LearningRateKey records the current learning rate of the logged group.
	LearningRateKey = "training.lr"

	// MomentumKey records the current optimizer momentum.
	MomentumKey = "training.momentum"

	// AccumulateKey records the current gradient accumulation window.
	AccumulateKey = "training.accumulate"

	// LossKey records the aggregate loss value.
	LossKey = "metrics.loss"

	// MAPKey records the mean average precision from the evaluator.
	MAPKey = "metrics.map"

	// BestMAPKey records the best mean average precision observed so far.
	BestMAPKey = "metrics.best_map"

	// LossScaleKey records the dynamic loss scale of mixed precision training.
	LossScaleKey = "amp.loss_scale"
)

// Data and Resolution
const (
	// ImageSizeKey records the current square input resolution in pixels.
	ImageSizeKey = "data.image_size"

	// BatchSizeKey records the per-process batch size.
	BatchSizeKey = "data.batch_size"

	// TargetsKey records the number of target boxes in a batch.
	TargetsKey = "data.targets"
)

// Distributed Context
const (
	// RankKey records the process rank within the distributed group.
	RankKey = "dist.rank"

	// WorldSizeKey records the number of participating processes.
	WorldSizeKey = "dist.world_size"
)

// Performance
const (
	// DurationSecondsKey records elapsed wall time in seconds.
	DurationSecondsKey = "perf.duration_seconds"
)

// Checkpointing
const (
	// CheckpointPathKey records the path a checkpoint was written to.
	CheckpointPathKey = "checkpoint.path"
)
