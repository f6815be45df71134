package filter

import (
	"context"

	"github.com/rushteam/newsrec/core"
)

// Filter 判断单个候选是否应被剔除。返回 true 表示过滤掉该候选。
type Filter interface {
	Name() string

	ShouldFilter(
		ctx context.Context,
		rctx *core.RecommendContext,
		item *core.Item,
	) (bool, error)
}
