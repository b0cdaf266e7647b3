package distributed

import (
	"math"
	"sync"
	"testing"

	"github.com/YuminosukeSato/godet/detection"
)

func TestSingleProcess(t *testing.T) {
	var c SingleProcess

	if c.Rank() != 0 || c.WorldSize() != 1 || !c.IsLeader() {
		t.Fatalf("unexpected identity: rank %d world %d leader %v", c.Rank(), c.WorldSize(), c.IsLeader())
	}
	if err := c.Barrier(); err != nil {
		t.Fatal(err)
	}

	in := []float64{1, 2, 3}
	out, err := c.AllReduceSum(in)
	if err != nil {
		t.Fatal(err)
	}
	out[0] = 99
	if in[0] != 1 {
		t.Error("AllReduceSum aliased its input")
	}
}

func TestLocalGroupAllReduce(t *testing.T) {
	const worldSize = 4

	group, err := NewLocalGroup(worldSize)
	if err != nil {
		t.Fatal(err)
	}

	results := make([][]float64, worldSize)
	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			out, err := group[rank].AllReduceSum([]float64{float64(rank + 1), 10})
			if err != nil {
				t.Error(err)
				return
			}
			results[rank] = out
		}(r)
	}
	wg.Wait()

	for r, out := range results {
		if out == nil {
			t.Fatalf("rank %d produced no result", r)
		}
		if out[0] != 10 || out[1] != 40 {
			t.Errorf("rank %d reduced to %v, want [10 40]", r, out)
		}
	}
}

func TestLocalGroupRepeatedCollectives(t *testing.T) {
	const worldSize = 3
	const rounds = 5

	group, err := NewLocalGroup(worldSize)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			for round := 0; round < rounds; round++ {
				out, err := group[rank].AllReduceSum([]float64{float64(round)})
				if err != nil {
					t.Error(err)
					return
				}
				if want := float64(round * worldSize); out[0] != want {
					t.Errorf("rank %d round %d: got %v, want %v", rank, round, out[0], want)
				}
				if err := group[rank].Barrier(); err != nil {
					t.Error(err)
					return
				}
			}
		}(r)
	}
	wg.Wait()
}

func TestReduceLossesAverages(t *testing.T) {
	const worldSize = 4
	const tolerance = 1e-12

	group, err := NewLocalGroup(worldSize)
	if err != nil {
		t.Fatal(err)
	}

	locals := make([]*detection.LossRecord, worldSize)
	reduced := make([]*detection.LossRecord, worldSize)
	for r := 0; r < worldSize; r++ {
		rec := detection.NewLossRecord(detection.LossCls)
		rec.Set(detection.LossCls, float64(r+1)) // 1, 2, 3, 4
		rec.Set(detection.LossTotal, float64(r+1))
		locals[r] = rec
	}

	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			out, err := ReduceLosses(group[rank], locals[rank])
			if err != nil {
				t.Error(err)
				return
			}
			reduced[rank] = out
		}(r)
	}
	wg.Wait()

	for r := 0; r < worldSize; r++ {
		got, _ := reduced[r].Get(detection.LossCls)
		if math.Abs(got-2.5) > tolerance {
			t.Errorf("rank %d reduced loss_cls = %v, want 2.5", r, got)
		}
		// The local record keeps its own loss for the backward pass.
		local, _ := locals[r].Get(detection.LossCls)
		if local != float64(r+1) {
			t.Errorf("rank %d local record mutated: %v", r, local)
		}
	}
}

func TestNewLocalGroupValidation(t *testing.T) {
	if _, err := NewLocalGroup(0); err == nil {
		t.Error("expected error for zero world size")
	}
}
