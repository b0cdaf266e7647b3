package trainer

import (
	"fmt"
	"io"
	"strings"

	"github.com/YuminosukeSato/godet/detection"
)

// progressLine renders the bracketed per-iteration status line:
//
//	[Epoch: 1/300][Iter: 0/925][lr: 0.000100][loss_cls: 1.23][losses: 4.56][time: 0.42][size: 544]
//
// Epochs are 1-based for humans, iterations 0-based as counted. Only the
// terms present in both the record and the filter are printed; a nil filter
// prints everything the record declares.
func progressLine(epoch, maxEpoch, iter, epochSize int, lr float64, rec *detection.LossRecord, terms []detection.LossTerm, elapsed float64, imgSize int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Epoch: %d/%d]", epoch+1, maxEpoch)
	fmt.Fprintf(&b, "[Iter: %d/%d]", iter, epochSize)
	fmt.Fprintf(&b, "[lr: %.6f]", lr)
	if terms == nil {
		terms = rec.Terms()
	}
	for _, term := range terms {
		if v, ok := rec.Get(term); ok {
			fmt.Fprintf(&b, "[%s: %.2f]", term, v)
		}
	}
	fmt.Fprintf(&b, "[time: %.2f]", elapsed)
	fmt.Fprintf(&b, "[size: %d]", imgSize)
	return b.String()
}

func printProgress(w io.Writer, line string) {
	if w == nil {
		return
	}
	fmt.Fprintln(w, line)
}
