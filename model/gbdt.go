package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// GBDTModel 是梯度提升树排序器：五特征全量模型（retrieval_score、position、
// is_warm_user、user_click_count、item_age_hours），有产物时优先启用。
//
// 预测：对每棵树从根下钻到叶子，累加叶子值与 BaseScore，再过 sigmoid 得到
// 点击概率。树以数组形式（SoA）序列化，节点 i 的左右子为 Left[i]/Right[i]，
// 叶子以 Left[i] < 0 标记、取值 Value[i]。
type GBDTModel struct {
	BaseScore float64
	Trees     []Tree
}

// Tree 是一棵回归树的数组表示。
type Tree struct {
	Feature   []string  `json:"feature"`   // 内部节点的分裂特征
	Threshold []float64 `json:"threshold"` // 分裂阈值：feature < threshold 走左
	Left      []int     `json:"left"`      // 左子下标，< 0 表示当前节点是叶子
	Right     []int     `json:"right"`     // 右子下标
	Value     []float64 `json:"value"`     // 叶子值
}

// LoadGBDTModel 从 JSON 产物加载 GBDT 模型（离线训练任务导出）。
func LoadGBDTModel(path string) (*GBDTModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		BaseScore float64 `json:"base_score"`
		Trees     []Tree  `json:"trees"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.Trees) == 0 {
		return nil, fmt.Errorf("gbdt: no trees in %s", path)
	}
	for ti, t := range raw.Trees {
		n := len(t.Left)
		if len(t.Right) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
			return nil, fmt.Errorf("gbdt: tree %d has inconsistent node arrays", ti)
		}
	}
	return &GBDTModel{BaseScore: raw.BaseScore, Trees: raw.Trees}, nil
}

func (m *GBDTModel) Name() string { return "gbdt" }

func (m *GBDTModel) Predict(features map[string]float64) (float64, error) {
	score := m.BaseScore
	for ti := range m.Trees {
		leaf, err := m.Trees[ti].traverse(features)
		if err != nil {
			return 0, fmt.Errorf("gbdt: tree %d: %w", ti, err)
		}
		score += leaf
	}
	return 1 / (1 + math.Exp(-score)), nil
}

func (t *Tree) traverse(features map[string]float64) (float64, error) {
	node := 0
	for steps := 0; steps <= len(t.Left); steps++ {
		if node < 0 || node >= len(t.Left) {
			return 0, fmt.Errorf("node %d out of range", node)
		}
		if t.Left[node] < 0 {
			return t.Value[node], nil
		}
		// 缺失特征按 0 处理，与离线训练的填充约定一致
		if features[t.Feature[node]] < t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return 0, fmt.Errorf("cycle detected")
}

var _ RankModel = (*GBDTModel)(nil)
var _ RankModel = (*LRModel)(nil)
