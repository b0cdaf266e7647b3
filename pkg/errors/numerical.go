package errors

import (
	"math"
)

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
// The gradient scan of the loss scaler runs through this check.
func CheckNumericalStability(operation string, values []float64, step int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, step)
		}
	}
	return nil
}
