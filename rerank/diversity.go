package rerank

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pipeline"
	"github.com/rushteam/newsrec/pkg/utils"
)

// Diversity 是 MMR 风格的贪心多样性重排节点：对与已选结果标题高度相似的
// 候选做乘性降权，抑制近重复话题刷屏。
//
// 算法（对 ≤ page_size 的候选集 O(n²)，确定性）：
//  1. 标题分词：小写、去非字母数字、丢弃短于 3 字符的 token 与停用词
//  2. 首选 RankScore 最高的候选原样入选（FinalScore = RankScore）
//  3. 每轮对剩余候选计算 max_sim = 与所有已选候选的最大 Jaccard 相似度，
//     penalty = clamp(Lambda * max_sim, 0, PenaltyCap)，
//     final = rank_score * (1 - penalty)，取 final 最高者入选
//
// 惩罚是 RankScore 的比例折减而非加性偏移，PenaltyCap 保证单个近重复
// 不会把候选分数打穿，因此恒有 0 ≤ FinalScore ≤ RankScore。
// 0 是合法取值（关闭惩罚/上限），只有负数视为未设置、取默认值。
type Diversity struct {
	Lambda     float64 // 负数时取默认 0.10
	PenaltyCap float64 // 负数时取默认 0.30
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "at": {}, "by": {}, "from": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "it": {},
	"this": {}, "that": {}, "as": {}, "but": {}, "not": {},
}

func (n *Diversity) Name() string        { return "rerank.diversity" }
func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	lambda := n.Lambda
	if lambda < 0 {
		lambda = 0.10
	}
	penaltyCap := n.PenaltyCap
	if penaltyCap < 0 {
		penaltyCap = 0.30
	}

	tokens := make(map[string]map[string]struct{}, len(items))
	for _, it := range items {
		if it != nil {
			tokens[it.ID] = TokenizeTitle(it.Title)
		}
	}

	remaining := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			remaining = append(remaining, it)
		}
	}
	// 上游排序节点已按 RankScore 降序，这里防御性重排（稳定，不破坏同分顺序）
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].RankScore > remaining[j].RankScore
	})

	selected := make([]*core.Item, 0, len(remaining))
	first := remaining[0]
	first.FinalScore = first.RankScore
	selected = append(selected, first)
	remaining = remaining[1:]

	for len(remaining) > 0 {
		bestIdx := 0
		bestFinal := -1.0

		for idx, cand := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				if sim := jaccard(tokens[cand.ID], tokens[s.ID]); sim > maxSim {
					maxSim = sim
				}
			}
			penalty := lambda * maxSim
			if penalty > penaltyCap {
				penalty = penaltyCap
			}
			if penalty < 0 {
				penalty = 0
			}
			final := cand.RankScore * (1 - penalty)
			if final > bestFinal {
				bestFinal = final
				bestIdx = idx
			}
		}

		chosen := remaining[bestIdx]
		chosen.FinalScore = bestFinal
		if bestFinal < chosen.RankScore {
			chosen.PutLabel("diversity_penalized", utils.Label{Value: "true", Source: "rerank"})
		}
		selected = append(selected, chosen)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected, nil
}

// TokenizeTitle 把标题切成用于 Jaccard 相似度的 token 集合。
func TokenizeTitle(title string) map[string]struct{} {
	title = strings.ToLower(title)
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	out := make(map[string]struct{})
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) < 3 {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// jaccard 计算两个 token 集合的 Jaccard 相似度；任一为空集时为 0。
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
