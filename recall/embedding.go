package recall

import (
	"context"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/embedding"
	"github.com/rushteam/newsrec/pkg/utils"
)

// HistoryStore 提供召回所需的用户点击历史读取，由 ledger 实现。
// 空历史是常态（新用户），返回空结果而不是错误。
type HistoryStore interface {
	// RecentClickedItemIDs 返回用户最近点击的至多 k 个物品 ID，按点击时间倒序
	RecentClickedItemIDs(ctx context.Context, anonymousID string, k int) ([]string, error)

	// ClickCount 返回用户的历史点击总数
	ClickCount(ctx context.Context, anonymousID string) (int64, error)
}

// Embedding 是热用户的个性化召回源：取用户最近点击物品的向量求均值、
// 重新归一化作为用户向量，再到向量索引做 TopK 内积检索。
// 已点击过的物品从候选中剔除（点过的不再推）。
type Embedding struct {
	Store   *embedding.Store
	History HistoryStore

	// RecentK 构建用户向量使用的最近点击数，默认 5
	RecentK int

	// TopK 检索的候选规模，默认 200；实际取 max(TopK, page_size)
	TopK int
}

const (
	defaultRecentK = 5
	defaultTopK    = 200
)

func (r *Embedding) Name() string { return "recall.emb" }

func (r *Embedding) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Store == nil || rctx == nil || rctx.AnonymousID == "" {
		return nil, nil
	}

	recentK := r.RecentK
	if recentK <= 0 {
		recentK = defaultRecentK
	}

	clicked, err := r.History.RecentClickedItemIDs(ctx, rctx.AnonymousID, recentK)
	if err != nil {
		return nil, err
	}
	if len(clicked) == 0 {
		return nil, nil
	}

	// 用户向量 = 点击向量均值，重新归一化。
	// 点击的物品可能已不在索引里（资产滚动重建），跳过即可。
	userVec := make([]float32, r.Store.Dim())
	found := 0
	for _, id := range clicked {
		vec, ok := r.Store.Vector(id)
		if !ok {
			continue
		}
		for i, x := range vec {
			userVec[i] += x
		}
		found++
	}
	if found == 0 {
		return nil, nil
	}
	embedding.Normalize(userVec)

	topK := r.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if rctx.PageSize > topK {
		topK = rctx.PageSize
	}

	hits, err := r.Store.Search(userVec, topK)
	if err != nil {
		return nil, err
	}

	clickedSet := make(map[string]struct{}, len(clicked))
	for _, id := range clicked {
		clickedSet[id] = struct{}{}
	}

	out := make([]*core.Item, 0, len(hits))
	for _, h := range hits {
		if _, seen := clickedSet[h.ItemID]; seen {
			continue
		}
		it := core.NewItem(h.ItemID)
		it.RetrievalScore = h.Score
		it.PutLabel("recall_source", utils.Label{Value: "emb", Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}
