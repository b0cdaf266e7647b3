package distributed

import (
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/godet/detection"
	"github.com/YuminosukeSato/godet/pkg/errors"
)

// ReduceLosses averages a loss record across the process group and returns
// the average as a fresh record. The local record is left untouched: the
// backward pass must consume the local loss, only the reporting path sees
// the averaged one. With a single worker the result is a plain copy.
func ReduceLosses(comm Communicator, local *detection.LossRecord) (*detection.LossRecord, error) {
	vals := local.Values()
	reduced, err := comm.AllReduceSum(vals)
	if err != nil {
		return nil, errors.Wrap(err, "reduce losses")
	}
	floats.Scale(1/float64(comm.WorldSize()), reduced)
	return local.WithValues(reduced), nil
}
