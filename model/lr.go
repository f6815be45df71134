package model

import (
	"encoding/json"
	"math"
	"os"
)

// LRModel 是逻辑回归排序器：两特征（retrieval_score、position）的降级模型，
// 当 GBDT 产物缺失时启用。
//
// 预测：z = Bias + sum(Weight_i * Feature_i)，P = 1 / (1 + exp(-z))。
// 只读取 Weights 中声明的特征，多余特征自动忽略。
type LRModel struct {
	Bias    float64            // 偏置项 (Intercept)
	Weights map[string]float64 // 特征权重
}

// LoadLRModel 从 JSON 产物加载 LR 模型（离线训练任务导出）。
func LoadLRModel(path string) (*LRModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Bias    float64            `json:"bias"`
		Weights map[string]float64 `json:"weights"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &LRModel{Bias: raw.Bias, Weights: raw.Weights}, nil
}

func (m *LRModel) Name() string { return "lr" }

func (m *LRModel) Predict(features map[string]float64) (float64, error) {
	score := m.Bias
	for k, w := range m.Weights {
		if v, ok := features[k]; ok {
			score += w * v
		}
	}
	return 1 / (1 + math.Exp(-score)), nil
}
