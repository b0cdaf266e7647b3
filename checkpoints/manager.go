package checkpoints

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/YuminosukeSato/godet/pkg/log"
)

// Manager owns the best-so-far gate and the on-disk naming convention.
// Runs with an evaluator keep a single "<model>_best.json" file overwritten
// whenever the metric strictly improves; runs without one keep a single
// "<model>_no_eval.json" refreshed on every eval boundary.
type Manager struct {
	dir       string
	modelName string
	saver     Saver
	bestMAP   float64
	logger    log.Logger
}

// NewManager creates a manager writing under dir. The best metric starts
// below any achievable mAP so the first evaluated save always fires.
func NewManager(dir, modelName string) *Manager {
	return &Manager{
		dir:       dir,
		modelName: modelName,
		bestMAP:   -1,
		logger:    log.GetLogger().With(log.ModelNameKey, modelName),
	}
}

// BestMAP returns the best metric seen so far, -1 before any evaluation.
func (m *Manager) BestMAP() float64 { return m.bestMAP }

// SetBestMAP seeds the gate, used when resuming from a checkpoint.
func (m *Manager) SetBestMAP(v float64) { m.bestMAP = v }

// BestPath returns the path of the evaluated checkpoint file.
func (m *Manager) BestPath() string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_best.json", m.modelName))
}

// NoEvalPath returns the path of the checkpoint file used when no
// evaluator is configured.
func (m *Manager) NoEvalPath() string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_no_eval.json", m.modelName))
}

// SaveIfBest writes the checkpoint when curMAP strictly exceeds the best
// metric so far. The stored metric is rounded to one decimal of percentage
// points. Returns whether a file was written.
func (m *Manager) SaveIfBest(ckpt *Checkpoint, curMAP float64) (bool, error) {
	if curMAP <= m.bestMAP {
		return false, nil
	}
	m.bestMAP = curMAP

	ckpt.ModelName = m.modelName
	ckpt.MeanAP = math.Round(curMAP*1000) / 10
	path := m.BestPath()
	if err := m.saver.Save(ckpt, path); err != nil {
		return false, err
	}
	m.logger.Info("saved best checkpoint",
		log.CheckpointPathKey, path,
		log.BestMAPKey, m.bestMAP,
		log.EpochKey, ckpt.TrainingState.Epoch)
	return true, nil
}

// SaveNoEval writes the checkpoint unconditionally under the no-eval name,
// with a sentinel metric of -1.
func (m *Manager) SaveNoEval(ckpt *Checkpoint) error {
	ckpt.ModelName = m.modelName
	ckpt.MeanAP = -1
	path := m.NoEvalPath()
	if err := m.saver.Save(ckpt, path); err != nil {
		return err
	}
	m.logger.Info("saved checkpoint without evaluation",
		log.CheckpointPathKey, path,
		log.EpochKey, ckpt.TrainingState.Epoch)
	return nil
}
