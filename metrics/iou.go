// Package metrics は検出結果の評価指標を提供します。
// ボックスは (N, 4) のコーナー形式 (x1, y1, x2, y2) 行列で表現されます。
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// IoU は2つのコーナー形式ボックスの Intersection over Union を計算する
func IoU(a, b []float64) float64 {
	ix1 := max64(a[0], b[0])
	iy1 := max64(a[1], b[1])
	ix2 := min64(a[2], b[2])
	iy2 := min64(a[3], b[3])

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// PairwiseIoU は予測ボックス (N, 4) と正解ボックス (M, 4) の
// 全ペア IoU 行列 (N, M) を計算する
func PairwiseIoU(pred, gt *mat.Dense) (*mat.Dense, error) {
	n, cp := pred.Dims()
	m, cg := gt.Dims()
	if cp != 4 {
		return nil, errors.NewDimensionError("PairwiseIoU:pred", 4, cp, 1)
	}
	if cg != 4 {
		return nil, errors.NewDimensionError("PairwiseIoU:gt", 4, cg, 1)
	}

	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		a := pred.RawRowView(i)
		for j := 0; j < m; j++ {
			out.Set(i, j, IoU(a, gt.RawRowView(j)))
		}
	}
	return out, nil
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
