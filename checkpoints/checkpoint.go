// Package checkpoints persists training state as JSON so runs can be
// resumed or their best weights exported. Weights travel as flat float64
// slices with their matrix shape; integer buffers (batch-norm counters and
// the like) are carried alongside verbatim.
package checkpoints

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/godet/pkg/errors"
	"github.com/YuminosukeSato/godet/solver"
)

// WeightTensor is one serialized parameter.
type WeightTensor struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data,omitempty"`
	Ints []int64   `json:"ints,omitempty"`
}

// TrainingState captures where the run was when the checkpoint was taken.
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	GlobalStep   int     `json:"global_step"`
	LearningRate float64 `json:"learning_rate"`
	LossScale    float64 `json:"loss_scale,omitempty"`
}

// Checkpoint is the complete persisted state of a training run.
type Checkpoint struct {
	ModelName      string         `json:"model_name"`
	Weights        []WeightTensor `json:"model"`
	MeanAP         float64        `json:"mAP"`
	OptimizerState *solver.State  `json:"optimizer,omitempty"`
	TrainingState  TrainingState  `json:"training_state"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ExtractWeights serializes parameters into weight tensors. Gradients are
// not persisted.
func ExtractWeights(params []*solver.Param) []WeightTensor {
	out := make([]WeightTensor, 0, len(params))
	for _, p := range params {
		wt := WeightTensor{Name: p.Name}
		if p.Value != nil {
			r, c := p.Value.Dims()
			wt.Rows, wt.Cols = r, c
			wt.Data = append([]float64(nil), p.Value.RawMatrix().Data...)
		}
		if len(p.Ints) > 0 {
			wt.Ints = append([]int64(nil), p.Ints...)
		}
		out = append(out, wt)
	}
	return out
}

// LoadWeights copies serialized tensors back into matching parameters,
// looked up by name. Shape mismatches are reported, unknown names skipped.
func LoadWeights(weights []WeightTensor, params []*solver.Param) error {
	byName := make(map[string]*solver.Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	for _, wt := range weights {
		p, ok := byName[wt.Name]
		if !ok {
			continue
		}
		if len(wt.Data) > 0 {
			if p.Value == nil {
				p.Value = mat.NewDense(wt.Rows, wt.Cols, nil)
			}
			r, c := p.Value.Dims()
			if r != wt.Rows {
				return errors.NewDimensionError("load weights "+wt.Name, wt.Rows, r, 0)
			}
			if c != wt.Cols {
				return errors.NewDimensionError("load weights "+wt.Name, wt.Cols, c, 1)
			}
			copy(p.Value.RawMatrix().Data, wt.Data)
		}
		if len(wt.Ints) > 0 {
			p.Ints = append(p.Ints[:0], wt.Ints...)
		}
	}
	return nil
}

// Saver reads and writes checkpoints as indented JSON files.
type Saver struct{}

// Save writes the checkpoint to path, creating parent directories as
// needed.
func (Saver) Save(ckpt *Checkpoint, path string) error {
	if ckpt.CreatedAt.IsZero() {
		ckpt.CreatedAt = time.Now()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewCheckpointError("save", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewCheckpointError("save", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ckpt); err != nil {
		return errors.NewCheckpointError("save", path, err)
	}
	return nil
}

// Load reads a checkpoint previously written by Save.
func (Saver) Load(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewCheckpointError("load", path, err)
	}
	defer f.Close()

	var ckpt Checkpoint
	if err := json.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, errors.NewCheckpointError("load", path, err)
	}
	return &ckpt, nil
}
