package model

// PositionFallback 是无模型产物时的兜底排序器：rank_score = 1 / position。
// 分数随召回位次单调递减，即保持召回顺序不变。Predict 永不报错——
// 没有训练好的模型是一种降级但合法的运行状态，不是故障。
type PositionFallback struct{}

func (PositionFallback) Name() string { return "fallback" }

func (PositionFallback) Predict(features map[string]float64) (float64, error) {
	pos := features[FeaturePosition]
	if pos < 1 {
		pos = 1
	}
	return 1 / pos, nil
}

var _ RankModel = PositionFallback{}
