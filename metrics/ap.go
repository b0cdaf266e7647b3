package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// MatchDetections はスコア降順の貪欲マッチングで各予測を正解に割り当て、
// 真陽性フラグを返す。各正解は最大1つの予測としかマッチしない。
// gt が nil の場合、全予測は偽陽性となる。
func MatchDetections(pred *mat.Dense, scores []float64, gt *mat.Dense, iouThreshold float64) ([]bool, error) {
	if pred == nil {
		return nil, nil
	}
	n, _ := pred.Dims()
	if len(scores) != n {
		return nil, errors.NewDimensionError("MatchDetections:scores", n, len(scores), 0)
	}

	matched := make([]bool, n)
	if gt == nil {
		return matched, nil
	}

	ious, err := PairwiseIoU(pred, gt)
	if err != nil {
		return nil, err
	}
	m, _ := gt.Dims()
	taken := make([]bool, m)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	for _, i := range order {
		best := -1
		bestIoU := iouThreshold
		for j := 0; j < m; j++ {
			if taken[j] {
				continue
			}
			if iou := ious.At(i, j); iou >= bestIoU {
				best = j
				bestIoU = iou
			}
		}
		if best >= 0 {
			taken[best] = true
			matched[i] = true
		}
	}
	return matched, nil
}

// AveragePrecision は precision-recall 曲線の下面積（全点補間）を計算する。
// scores と matched は同一の予測集合を表し、numGT は正解ボックス総数。
func AveragePrecision(scores []float64, matched []bool, numGT int) (float64, error) {
	if len(scores) != len(matched) {
		return 0, errors.NewDimensionError("AveragePrecision", len(scores), len(matched), 0)
	}
	if numGT <= 0 {
		return 0, errors.NewValidationError("num_gt", "must be positive", numGT)
	}
	if len(scores) == 0 {
		return 0, nil
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	// 累積 precision/recall
	precisions := make([]float64, 0, len(order))
	recalls := make([]float64, 0, len(order))
	tp, fp := 0, 0
	for _, i := range order {
		if matched[i] {
			tp++
		} else {
			fp++
		}
		precisions = append(precisions, float64(tp)/float64(tp+fp))
		recalls = append(recalls, float64(tp)/float64(numGT))
	}

	// precision を単調非増加に補正
	for i := len(precisions) - 2; i >= 0; i-- {
		if precisions[i] < precisions[i+1] {
			precisions[i] = precisions[i+1]
		}
	}

	var ap, prevRecall float64
	for i := range recalls {
		ap += (recalls[i] - prevRecall) * precisions[i]
		prevRecall = recalls[i]
	}
	return ap, nil
}

// MeanAP はクラス別 AP の平均を返す。空入力は 0 となる。
func MeanAP(perClass []float64) float64 {
	if len(perClass) == 0 {
		return 0
	}
	var sum float64
	for _, ap := range perClass {
		sum += ap
	}
	return sum / float64(len(perClass))
}
