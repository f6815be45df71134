package feature

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/model"
	"github.com/rushteam/newsrec/pipeline"
)

// LedgerReader 提供特征补全所需的账本读取，由 ledger 实现。
type LedgerReader interface {
	// ClickCount 返回用户的历史点击总数
	ClickCount(ctx context.Context, anonymousID string) (int64, error)

	// ItemIngestedAt 批量返回物品的入库时间；未知物品不出现在结果里
	ItemIngestedAt(ctx context.Context, itemIDs []string) (map[string]time.Time, error)

	// Titles 批量返回物品标题（多样性重排与响应体都需要）
	Titles(ctx context.Context, itemIDs []string) (map[string]string, error)
}

// EnrichNode 是在线特征补全节点：给每个候选写入排序模型需要的特征行。
// 纯函数语义：同一账本快照 + 同一 rctx.ServedAt 时钟读数下输出确定。
//
// 特征：
//   - retrieval_score: 召回相似度（透传）
//   - position:        召回位次（1 起）
//   - is_warm_user:    历史点击数 > 0 时为 1
//   - user_click_count: 历史点击总数
//   - item_age_hours:  served_at - ingested_at 的小时数，入库时间未知时为 0
//
// 三路账本读取（点击数、入库时间、标题）互不依赖，用 errgroup 并发取回。
type EnrichNode struct {
	Ledger LedgerReader
}

func (n *EnrichNode) Name() string        { return "feature.enrich" }
func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *EnrichNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	itemIDs := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			itemIDs = append(itemIDs, it.ID)
		}
	}

	var (
		clickCount int64
		ingested   map[string]time.Time
		titles     map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clickCount, err = n.Ledger.ClickCount(gctx, rctx.AnonymousID)
		return err
	})
	g.Go(func() error {
		var err error
		ingested, err = n.Ledger.ItemIngestedAt(gctx, itemIDs)
		return err
	})
	g.Go(func() error {
		var err error
		titles, err = n.Ledger.Titles(gctx, itemIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	isWarm := 0.0
	if clickCount > 0 {
		isWarm = 1.0
	}

	servedAt := rctx.ServedAt
	if servedAt.IsZero() {
		servedAt = time.Now().UTC()
	}

	for _, it := range items {
		if it == nil {
			continue
		}
		ageHours := 0.0
		if ts, ok := ingested[it.ID]; ok {
			ageHours = servedAt.Sub(ts).Hours()
		}
		if title, ok := titles[it.ID]; ok {
			it.Title = title
		}

		it.Features[model.FeatureRetrievalScore] = it.RetrievalScore
		it.Features[model.FeaturePosition] = float64(it.RetrievalPos)
		it.Features[model.FeatureIsWarmUser] = isWarm
		it.Features[model.FeatureUserClickCount] = float64(clickCount)
		it.Features[model.FeatureItemAgeHours] = ageHours
	}
	return items, nil
}
