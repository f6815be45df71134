package core

import (
	"time"

	"github.com/rushteam/newsrec/pkg/utils"
)

// RecommendContext 承载一次推荐请求的用户/场景信息，贯穿整个 Pipeline 透传。
// AnonymousID 是全链路真正的用户主键（绝大多数用户是匿名的）；
// SessionID 由调用方或服务端生成，落库前会懒式 upsert（外键安全）。
type RecommendContext struct {
	AnonymousID string
	SessionID   string

	Surface  string // 请求来源面：home / feed / search ...
	PageSize int
	Locale   string
	Category string // 可选：冷启动路径的类目限定

	// ServedAt 是本次请求的统一时钟读数：特征计算（item_age_hours）与
	// 曝光落库使用同一时间，保证可复现。
	ServedAt time.Time

	// Labels 是请求级标签（如 retrieval_path=warm），用于 explain / 观测。
	Labels map[string]utils.Label
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
