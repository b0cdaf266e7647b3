// Package distributed provides the process-group abstraction used to keep
// loss reporting and checkpointing consistent across data-parallel workers.
// The training loop itself is communication-free; gradients are synchronized
// by the model runtime, so the only collective traffic here is scalar loss
// averaging and barriers around leader-only work.
package distributed

// Communicator is the collective surface a process group must provide.
// Implementations must be safe for use from the single training goroutine
// of their rank; they need not support concurrent collectives from one rank.
type Communicator interface {
	// Rank returns this worker's index in [0, WorldSize).
	Rank() int
	// WorldSize returns the number of participating workers.
	WorldSize() int
	// AllReduceSum sums the vector element-wise across all workers and
	// returns the result. Every rank must call with the same length.
	AllReduceSum(vals []float64) ([]float64, error)
	// Barrier blocks until every worker has entered it.
	Barrier() error
	// IsLeader reports whether this worker is rank 0.
	IsLeader() bool
}

// SingleProcess is the degenerate one-worker group. Collectives are
// identity operations, which lets the training loop run unmodified in
// non-distributed runs.
type SingleProcess struct{}

func (SingleProcess) Rank() int      { return 0 }
func (SingleProcess) WorldSize() int { return 1 }
func (SingleProcess) IsLeader() bool { return true }

func (SingleProcess) AllReduceSum(vals []float64) ([]float64, error) {
	out := make([]float64, len(vals))
	copy(out, vals)
	return out, nil
}

func (SingleProcess) Barrier() error { return nil }
