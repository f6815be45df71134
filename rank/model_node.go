package rank

import (
	"context"
	"sort"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/model"
	"github.com/rushteam/newsrec/pipeline"
	"github.com/rushteam/newsrec/pkg/logger"
	"github.com/rushteam/newsrec/pkg/utils"
)

// ModelNode 是排序节点：用选定的 RankModel 给每个候选打 RankScore，
// 再按分数降序稳定排序（同分保持召回顺序，保证可复现）。
//
// 单个候选打分失败不会中断请求：该候选降级为 1/position 兜底分，
// 并打上 ranker=fallback 标记。
type ModelNode struct {
	Model model.RankModel
	Log   *logger.Logger
}

func (n *ModelNode) Name() string        { return "rank.model" }
func (n *ModelNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *ModelNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Model == nil || len(items) == 0 {
		return items, nil
	}

	fallback := model.PositionFallback{}
	for _, it := range items {
		if it == nil {
			continue
		}
		score, err := n.Model.Predict(it.Features)
		ranker := n.Model.Name()
		if err != nil {
			if n.Log != nil {
				n.Log.Warn("ranker predict failed, falling back", "item", it.ID, "err", err)
			}
			score, _ = fallback.Predict(it.Features)
			ranker = fallback.Name()
		}
		it.RankScore = score
		it.PutLabel("ranker", utils.Label{Value: ranker, Source: "rank"})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i] == nil {
			return false
		}
		if items[j] == nil {
			return true
		}
		return items[i].RankScore > items[j].RankScore
	})
	return items, nil
}
