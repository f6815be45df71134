package model

// RankModel 是排序阶段的最小抽象：输入特征，输出点击概率 [0,1]。
// 具体实现可以是本地模型（GBDT/LR）或兜底启发式；三者在启动时按
// 模型产物是否存在一次性选定，请求路径上不再做类型判断。
type RankModel interface {
	Name() string
	Predict(features map[string]float64) (float64, error)
}

// 排序模型使用的特征名，与特征补全节点写入的 key 一致。
const (
	FeatureRetrievalScore = "retrieval_score"
	FeaturePosition       = "position"
	FeatureIsWarmUser     = "is_warm_user"
	FeatureUserClickCount = "user_click_count"
	FeatureItemAgeHours   = "item_age_hours"
)
