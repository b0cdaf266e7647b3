package trainer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/godet/augment"
	"github.com/YuminosukeSato/godet/checkpoints"
	"github.com/YuminosukeSato/godet/detection"
	"github.com/YuminosukeSato/godet/distributed"
	"github.com/YuminosukeSato/godet/pkg/errors"
	"github.com/YuminosukeSato/godet/pkg/log"
	"github.com/YuminosukeSato/godet/schedule"
	"github.com/YuminosukeSato/godet/solver"
	"github.com/YuminosukeSato/godet/vis"
)

// Trainer drives the full training run: the epoch loop, the per-iteration
// schedule and update pipeline, evaluation and checkpointing. One Trainer
// instance belongs to one worker rank.
type Trainer struct {
	cfg Config
	bhv behavior

	data      DataSource
	model     Model
	criterion Criterion
	evaluator Evaluator
	comm      distributed.Communicator

	opt    solver.Optimizer
	scaler *solver.GradScaler
	ema    *solver.EMA

	clock  schedule.Clock
	warmup *schedule.Warmup
	accum  *schedule.Accumulator
	sched  schedule.Schedule

	multiScale *augment.MultiScale
	ckpts      *checkpoints.Manager
	logger     log.Logger
	logTerms   []detection.LossTerm
	visDir     string

	epoch      int
	startEpoch int
	maxEpoch   int
	heavyEval  bool
}

// Option configures optional collaborators of a Trainer.
type Option func(*Trainer)

// WithEvaluator attaches a validation evaluator. Without one, checkpoints
// are written unconditionally at every eval boundary.
func WithEvaluator(e Evaluator) Option {
	return func(t *Trainer) { t.evaluator = e }
}

// WithCommunicator attaches the process group for distributed training.
// The default is the single-process group.
func WithCommunicator(c distributed.Communicator) Option {
	return func(t *Trainer) { t.comm = c }
}

// New assembles a trainer for the given configuration and collaborators.
func New(cfg Config, model Model, criterion Criterion, data DataSource, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stepsPerEpoch := data.Len()
	if stepsPerEpoch <= 0 {
		return nil, errors.WithStack(errors.ErrEmptyBatch)
	}

	t := &Trainer{
		cfg:       cfg,
		bhv:       behaviorFor(cfg.Family),
		data:      data,
		model:     model,
		criterion: criterion,
		comm:      distributed.SingleProcess{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = log.GetLogger().With(
		log.TrainerFamilyKey, cfg.Family.String(),
		log.ModelNameKey, cfg.ModelName,
		log.RankKey, t.comm.Rank(),
		log.WorldSizeKey, t.comm.WorldSize(),
	)

	t.clock = schedule.Clock{StepsPerEpoch: stepsPerEpoch}
	t.maxEpoch = cfg.MaxEpoch + cfg.WarmupEpochs

	sched, err := schedule.NewSchedule(cfg.ScheduleName, t.maxEpoch, cfg.FinalLRFactor)
	if err != nil {
		return nil, err
	}
	t.sched = sched

	lr0, weightDecay := cfg.effectiveHyperparams(t.bhv)
	t.opt, err = buildOptimizer(t.bhv, model.Parameters(), lr0, weightDecay, cfg.Momentum)
	if err != nil {
		return nil, err
	}

	window := t.clock.WarmupWindow(cfg.WarmupEpochs)
	t.warmup = schedule.NewWarmup(schedule.WarmupConfig{
		Window:         window,
		BiasLR:         cfg.WarmupBiasLR,
		BiasCurve:      t.bhv.biasCurve,
		WarmupMomentum: cfg.WarmupMomentum,
		Momentum:       cfg.Momentum,
	})
	t.accum, err = schedule.NewAccumulator(t.bhv.referenceBatch, cfg.BatchSize, window, t.bhv.accumulate)
	if err != nil {
		return nil, err
	}

	t.scaler = solver.NewGradScaler(cfg.MixedPrecision)
	t.ckpts = checkpoints.NewManager(filepath.Join(cfg.SaveDir, cfg.ModelName), cfg.ModelName)

	if cfg.VisTargets {
		t.visDir = filepath.Join(cfg.SaveDir, cfg.ModelName, "vis")
		if err := os.MkdirAll(t.visDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create vis directory")
		}
	}

	if cfg.Resume != "" {
		if err := t.resume(cfg.Resume); err != nil {
			return nil, err
		}
	}

	if cfg.MultiScale {
		t.multiScale, err = augment.NewMultiScale(
			model.MaxStride(), cfg.MinBoxSize, cfg.MultiScaleRange[0], cfg.MultiScaleRange[1], cfg.Seed)
		if err != nil {
			return nil, err
		}
	}

	// The EMA shadow lives on the leader only; it is what gets evaluated
	// and checkpointed. Its update counter resumes from the step count the
	// run restarts at.
	if cfg.EMA && t.comm.IsLeader() {
		t.ema, err = solver.NewEMA(model.Parameters(), cfg.EMADecay, cfg.EMATau, t.startEpoch*stepsPerEpoch)
		if err != nil {
			return nil, err
		}
	}

	if !cfg.LogAuxLoss {
		t.logTerms = t.bhv.defaultLogTerms
	}

	t.logger.Info("trainer built",
		log.BatchSizeKey, cfg.BatchSize,
		log.ImageSizeKey, cfg.ImgSize,
		log.AccumulateKey, t.accum.Target(),
		log.LearningRateKey, lr0,
	)
	return t, nil
}

// resume restores weights, optimizer state and the epoch cursor from a
// checkpoint, then re-applies the epoch decay so learning rates match the
// restart epoch.
func (t *Trainer) resume(path string) error {
	var saver checkpoints.Saver
	ckpt, err := saver.Load(path)
	if err != nil {
		return err
	}
	if err := checkpoints.LoadWeights(ckpt.Weights, t.model.Parameters()); err != nil {
		return err
	}
	if ckpt.OptimizerState != nil {
		if err := t.opt.LoadState(ckpt.OptimizerState); err != nil {
			return err
		}
	}
	t.startEpoch = ckpt.TrainingState.Epoch + 1
	if ckpt.MeanAP > 0 {
		t.ckpts.SetBestMAP(ckpt.MeanAP / 100)
	}
	schedule.ApplyEpoch(t.opt.Groups(), t.sched, t.startEpoch)

	t.logger.Info("resumed from checkpoint",
		log.CheckpointPathKey, path,
		log.EpochKey, t.startEpoch,
	)
	return nil
}

// Epoch returns the current epoch cursor.
func (t *Trainer) Epoch() int { return t.epoch }

// Optimizer exposes the optimizer, mainly for inspection in tests and
// external schedulers.
func (t *Trainer) Optimizer() solver.Optimizer { return t.opt }

// EMA returns the EMA tracker, nil when disabled or on non-leader ranks.
func (t *Trainer) EMA() *solver.EMA { return t.ema }

// Checkpoints returns the checkpoint manager.
func (t *Trainer) Checkpoints() *checkpoints.Manager { return t.ckpts }

// Train runs the remaining epochs of the schedule.
func (t *Trainer) Train() (err error) {
	defer errors.Recover(&err, "Trainer.Train")

	for epoch := t.startEpoch; epoch < t.maxEpoch; epoch++ {
		t.epoch = epoch
		t.data.SetEpoch(epoch)
		t.checkStage()

		if err := t.trainOneEpoch(); err != nil {
			return err
		}

		if t.heavyEval || epoch%t.cfg.EvalEpoch == 0 || epoch == t.maxEpoch-1 {
			if err := t.evalAndCheckpoint(); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkStage closes the heavy augmentations once the run enters its final
// stage. From then on every epoch is evaluated.
func (t *Trainer) checkStage() {
	if t.epoch < t.maxEpoch-t.cfg.NoAugEpoch-1 {
		return
	}
	if t.data.MosaicProb() > 0 {
		t.logger.Info("closing mosaic augmentation",
			log.EpochKey, t.epoch, log.StageKey, "reduced_augmentation")
		t.data.SetMosaicProb(0)
		t.heavyEval = true
	}
	if t.data.MixupProb() > 0 {
		t.logger.Info("closing mixup augmentation",
			log.EpochKey, t.epoch, log.StageKey, "reduced_augmentation")
		t.data.SetMixupProb(0)
		t.heavyEval = true
	}
}

func (t *Trainer) trainOneEpoch() (err error) {
	defer errors.Recover(&err, "Trainer.trainOneEpoch")

	epochSize := t.data.Len()
	groups := t.opt.Groups()
	t0 := time.Now()

	for iter := 0; iter < epochSize; iter++ {
		ni := t.clock.GlobalStep(t.epoch, iter)

		// The accumulation window is re-derived every step, not only during
		// warmup, so a run resumed past the warmup window still accumulates
		// at its steady-state target.
		t.accum.Update(ni)
		if t.warmup.Active(ni) {
			t.warmup.Apply(ni, t.epoch, groups, t.sched)
		}

		batch, err := t.data.Batch(t.epoch, iter)
		if err != nil {
			return errors.Wrapf(err, "fetch batch %d of epoch %d", iter, t.epoch)
		}
		images := batch.Images
		images.Normalize()

		targets := batch.Targets
		imgSize := images.Size()
		if t.multiScale != nil {
			images, targets, imgSize, err = t.multiScale.Apply(images, targets)
			if err != nil {
				return err
			}
		} else {
			targets = detection.FilterTargets(targets, t.cfg.MinBoxSize)
		}
		warnEmptiedTargets(batch.Targets, targets, t.cfg.MinBoxSize)

		// Dump the batch exactly as the model will see it: augmented, with
		// the surviving targets still in pixel corner coordinates.
		if t.cfg.VisTargets {
			prefix := fmt.Sprintf("e%d_i%d", t.epoch, iter)
			if _, err := vis.SaveBatch(images, targets, t.visDir, prefix); err != nil {
				return err
			}
		}

		if t.bhv.encoding == detection.EncodeCenterNorm {
			targets = encodeCenterNorm(targets, imgSize)
		}

		preds, err := t.model.Forward(images)
		if err != nil {
			return errors.Wrap(err, "forward pass")
		}
		rec, err := t.criterion.Compute(preds, targets, imgSize)
		if err != nil {
			return errors.Wrap(err, "criterion")
		}

		loss := rec.Total()
		if t.bhv.scaleLossByBatch {
			loss *= float64(images.Len())
		}
		if t.bhv.scaleLossByWorld && t.comm.WorldSize() > 1 {
			loss *= float64(t.comm.WorldSize())
		}

		reduced, err := distributed.ReduceLosses(t.comm, rec)
		if err != nil {
			return err
		}

		if err := t.model.Backward(t.scaler.Scale(loss)); err != nil {
			return errors.Wrap(err, "backward pass")
		}

		if t.accum.ShouldStep(ni) {
			t.scaler.UnscaleAndClip(groups, t.cfg.ClipGrad)
			stepped, err := t.scaler.Step(t.opt, ni)
			if err != nil {
				return err
			}
			t.scaler.Update()
			t.opt.ZeroGrad()
			if stepped && t.ema != nil {
				if err := t.ema.Update(t.model.Parameters()); err != nil {
					return err
				}
			}
			t.accum.Advance(ni)
		}

		if t.comm.IsLeader() && iter%t.cfg.LogInterval == 0 {
			lr := groups[t.bhv.logLRGroup].LR
			printProgress(t.cfg.Progress, progressLine(
				t.epoch, t.maxEpoch, iter, epochSize, lr, reduced, t.logTerms,
				time.Since(t0).Seconds(), imgSize))
			t.logger.Debug("training progress",
				log.EpochKey, t.epoch,
				log.IterationKey, iter,
				log.GlobalStepKey, ni,
				log.LearningRateKey, lr,
				log.LossKey, reduced.Total(),
				log.AccumulateKey, t.accum.Current(),
				log.LossScaleKey, t.scaler.LossScale(),
				log.ImageSizeKey, imgSize,
			)
			t0 = time.Now()
		}
	}

	// Epoch decay for the next epoch's learning rates. During warmup the
	// per-step ramp overwrites this again.
	schedule.ApplyEpoch(groups, t.sched, t.epoch+1)
	return nil
}

// evalAndCheckpoint runs validation on the leader and persists weights. All
// ranks meet at the barrier so non-leaders cannot run ahead into the next
// epoch while the leader is still evaluating.
func (t *Trainer) evalAndCheckpoint() (err error) {
	defer errors.Recover(&err, "Trainer.evalAndCheckpoint")

	if t.comm.IsLeader() {
		evalParams := t.model.Parameters()
		if t.ema != nil {
			evalParams = t.ema.Shadow()
		}
		ckpt := t.buildCheckpoint(evalParams)

		if t.evaluator == nil {
			t.logger.Info("no evaluator, saving checkpoint and continuing",
				log.EpochKey, t.epoch, log.OperationKey, "checkpoint")
			if err := t.ckpts.SaveNoEval(ckpt); err != nil {
				return err
			}
		} else {
			t.logger.Info("evaluating", log.EpochKey, t.epoch, log.OperationKey, "eval")
			t.model.SetTraining(false)
			mAP, evalErr := t.evaluator.Evaluate(evalParams)
			t.model.SetTraining(true)
			if evalErr != nil {
				return errors.Wrap(evalErr, "evaluate")
			}
			t.logger.Info("evaluation finished",
				log.EpochKey, t.epoch,
				log.MAPKey, mAP,
				log.BestMAPKey, t.ckpts.BestMAP(),
			)
			if _, err := t.ckpts.SaveIfBest(ckpt, mAP); err != nil {
				return err
			}
		}
	}
	return t.comm.Barrier()
}

func (t *Trainer) buildCheckpoint(params []*solver.Param) *checkpoints.Checkpoint {
	return &checkpoints.Checkpoint{
		Weights:        checkpoints.ExtractWeights(params),
		OptimizerState: t.opt.State(),
		TrainingState: checkpoints.TrainingState{
			Epoch:        t.epoch,
			GlobalStep:   t.clock.GlobalStep(t.epoch+1, 0),
			LearningRate: t.opt.Groups()[t.bhv.logLRGroup].LR,
			LossScale:    t.scaler.LossScale(),
		},
	}
}

// encodeCenterNorm converts corner-box targets to normalized center-size
// form. Conversion happens after filtering, so the size threshold always
// applies in pixel units.
func encodeCenterNorm(targets []*detection.Target, imgSize int) []*detection.Target {
	out := make([]*detection.Target, len(targets))
	for i, tgt := range targets {
		out[i] = &detection.Target{
			Boxes:  detection.CornersToCenterNorm(tgt.Boxes, float64(imgSize)),
			Labels: tgt.Labels,
		}
	}
	return out
}

// warnEmptiedTargets reports images whose every annotation was dropped by
// the size filter. Training continues; criteria must tolerate empty
// targets.
func warnEmptiedTargets(before, after []*detection.Target, minBoxSize float64) {
	for i := range after {
		if after[i].NumBoxes() == 0 && i < len(before) && before[i].NumBoxes() > 0 {
			errors.Warn(&errors.EmptyTargetWarning{ImageIndex: i, MinBoxSize: minBoxSize})
		}
	}
}
