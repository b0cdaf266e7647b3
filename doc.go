// Package godet provides the training orchestration core for object
// detection models in Go.
//
// The library drives the full training run of a detector, epoch and
// iteration loops, learning-rate warmup and decay, gradient accumulation,
// mixed-precision loss scaling, EMA weight averaging, multi-scale
// augmentation, distributed loss reduction and checkpointing, while
// treating the network itself as an opaque collaborator behind small
// interfaces.
//
// # Features
//
// - Three detector families: anchor-based (yolo), anchor-free (rtmdet) and query-based (detr)
// - Per-step warmup with the falling bias curve and momentum interpolation
// - Batch-size-aware gradient accumulation and hyperparameter rescaling
// - Dynamic loss scaling with overflow skip and backoff
// - EMA weight shadow with ramped decay for evaluation and checkpoints
// - Best-metric checkpoint gating with leader-only saves
// - Structured logging and typed errors throughout
//
// # Quick Start
//
// Assemble a trainer from a configuration and your collaborators:
//
//	package main
//
//	import (
//	    "github.com/YuminosukeSato/godet/trainer"
//	)
//
//	func main() {
//	    cfg := trainer.NewConfig(trainer.FamilyYOLO, "yolov8_small")
//	    cfg.BatchSize = 16
//	    cfg.MaxEpoch = 300
//
//	    tr, err := trainer.New(cfg, model, criterion, dataset,
//	        trainer.WithEvaluator(evaluator))
//	    if err != nil {
//	        panic(err)
//	    }
//	    if err := tr.Train(); err != nil {
//	        panic(err)
//	    }
//	}
//
// See examples/detection-training for a complete runnable demo on
// synthetic data.
//
// # Package Layout
//
//   - detection: targets, boxes, image batches and loss records
//   - schedule: step clock, warmup, epoch decay, gradient accumulation
//   - solver: parameter groups, SGD/AdamW, loss scaler, EMA
//   - augment: multi-scale resizing with target rescaling
//   - distributed: process-group collectives and loss averaging
//   - checkpoints: JSON checkpoints and the best-metric manager
//   - trainer: the orchestration loop tying everything together
//   - metrics: IoU and average-precision evaluation helpers
//   - vis: target overlays and training-curve plots
package godet
