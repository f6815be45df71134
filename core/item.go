package core

import "github.com/rushteam/newsrec/pkg/utils"

// Item 是推荐链路中的统一候选结构，贯穿 召回 → 特征 → 排序 → 重排 各阶段。
// 三个分数对应流水线的三个阶段：
//   - RetrievalScore: 召回相似度（冷启动路径恒为 0）
//   - RankScore:      排序模型输出的相关性概率
//   - FinalScore:     多样性重排后的最终分数
//
// RetrievalPos 是重排前的召回位次（1 起），落库后用于离线评估的基线对照。
type Item struct {
	ID    string
	Title string

	RetrievalScore float64
	RetrievalPos   int
	RankScore      float64
	FinalScore     float64

	Features map[string]float64
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Features: make(map[string]float64),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}
