package recall

import (
	"context"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pkg/utils"
)

// Catalog 提供冷启动召回所需的目录随机取样，由 ledger 实现。
type Catalog interface {
	// RandomItems 从目录均匀随机取 n 个物品 ID；category/idPrefix 为空表示不限定
	RandomItems(ctx context.Context, n int, category, idPrefix string) ([]string, error)
}

// Random 是冷启动召回源：没有任何相似度信号，从目录均匀随机取 page_size 个，
// RetrievalScore 恒为 0。支持请求级类目限定与配置级 ID 前缀限定。
type Random struct {
	Catalog Catalog

	// IDPrefix 限定候选的 ID 前缀（如新闻目录的 "N"），空表示不限定
	IDPrefix string
}

func (r *Random) Name() string { return "recall.random" }

func (r *Random) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Catalog == nil || rctx == nil || rctx.PageSize <= 0 {
		return nil, nil
	}

	ids, err := r.Catalog.RandomItems(ctx, rctx.PageSize, rctx.Category, r.IDPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		it := core.NewItem(id)
		it.PutLabel("recall_source", utils.Label{Value: "random", Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}
