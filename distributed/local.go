package distributed

import (
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// localHub is the shared state behind a LocalGroup. All ranks of the group
// point at the same hub; collectives rendezvous on its condition variable.
type localHub struct {
	worldSize int

	mu         sync.Mutex
	cond       *sync.Cond
	arrived    int
	generation int
	sum        []float64
	result     []float64
}

// LocalGroup is an in-process process group where each rank runs on its own
// goroutine. It exists for tests and for single-machine multi-worker runs
// that share one address space.
type LocalGroup struct {
	rank int
	hub  *localHub
}

// NewLocalGroup returns one communicator per rank, all bound to the same
// rendezvous. Each returned communicator must be driven by its own
// goroutine or the collectives deadlock.
func NewLocalGroup(worldSize int) ([]*LocalGroup, error) {
	if worldSize <= 0 {
		return nil, errors.NewValidationError("world_size", "must be positive", worldSize)
	}
	h := &localHub{worldSize: worldSize}
	h.cond = sync.NewCond(&h.mu)
	group := make([]*LocalGroup, worldSize)
	for r := 0; r < worldSize; r++ {
		group[r] = &LocalGroup{rank: r, hub: h}
	}
	return group, nil
}

func (g *LocalGroup) Rank() int      { return g.rank }
func (g *LocalGroup) WorldSize() int { return g.hub.worldSize }
func (g *LocalGroup) IsLeader() bool { return g.rank == 0 }

// AllReduceSum accumulates the vectors of all ranks and hands every rank a
// private copy of the sum. Mismatched lengths across ranks are a caller bug
// and reported as an error by the first rank that detects it.
func (g *LocalGroup) AllReduceSum(vals []float64) ([]float64, error) {
	h := g.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.arrived == 0 {
		h.sum = make([]float64, len(vals))
	} else if len(vals) != len(h.sum) {
		return nil, errors.Newf("allreduce length mismatch: rank %d sent %d values, group uses %d", g.rank, len(vals), len(h.sum))
	}
	floats.Add(h.sum, vals)

	gen := h.generation
	h.arrived++
	if h.arrived == h.worldSize {
		h.result = h.sum
		h.sum = nil
		h.arrived = 0
		h.generation++
		h.cond.Broadcast()
	} else {
		for gen == h.generation {
			h.cond.Wait()
		}
	}

	out := make([]float64, len(h.result))
	copy(out, h.result)
	return out, nil
}

// Barrier blocks until all ranks of the group have entered it.
func (g *LocalGroup) Barrier() error {
	h := g.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	gen := h.generation
	h.arrived++
	if h.arrived == h.worldSize {
		h.arrived = 0
		h.generation++
		h.cond.Broadcast()
		return nil
	}
	for gen == h.generation {
		h.cond.Wait()
	}
	return nil
}
