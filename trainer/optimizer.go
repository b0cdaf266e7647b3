package trainer

import (
	"strings"

	"github.com/YuminosukeSato/godet/solver"
)

// groupParams partitions the model parameters into the three conventional
// groups: biases (group 0, no decay), convolution and linear weights
// (group 1, weight decay), normalization weights (group 2, no decay).
// Group 0 must stay first so the warmup bias curve lands on it. Integer
// buffers are excluded; they travel with the model, not the optimizer.
func groupParams(params []*solver.Param, lr0, momentum, weightDecay float64, hasMomentum bool) []*solver.Group {
	bias := &solver.Group{Name: "bias", InitialLR: lr0, LR: lr0, Momentum: momentum, HasMomentum: hasMomentum}
	weights := &solver.Group{Name: "weights", InitialLR: lr0, LR: lr0, Momentum: momentum, HasMomentum: hasMomentum, WeightDecay: weightDecay}
	norm := &solver.Group{Name: "norm", InitialLR: lr0, LR: lr0, Momentum: momentum, HasMomentum: hasMomentum}

	for _, p := range params {
		if !p.Floating() {
			continue
		}
		switch {
		case strings.HasSuffix(p.Name, ".bias"):
			bias.Params = append(bias.Params, p)
		case isNormParam(p.Name):
			norm.Params = append(norm.Params, p)
		default:
			weights.Params = append(weights.Params, p)
		}
	}
	return []*solver.Group{bias, weights, norm}
}

func isNormParam(name string) bool {
	return strings.Contains(name, ".bn") || strings.Contains(name, "norm")
}

// buildOptimizer constructs the family's optimizer over freshly grouped
// parameters: momentum SGD with nesterov for the convolutional families,
// AdamW for the query-based one.
func buildOptimizer(b behavior, params []*solver.Param, lr0, weightDecay, momentum float64) (solver.Optimizer, error) {
	if b.adamW {
		groups := groupParams(params, lr0, 0, weightDecay, false)
		return solver.NewAdamW(groups)
	}
	groups := groupParams(params, lr0, momentum, weightDecay, true)
	return solver.NewSGD(groups, true)
}
