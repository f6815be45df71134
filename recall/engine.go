package recall

import (
	"context"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pipeline"
	"github.com/rushteam/newsrec/pkg/logger"
	"github.com/rushteam/newsrec/pkg/utils"
)

// Engine 是召回引擎节点，按用户状态在两条路径间二选一：
//
//   - 热路径：历史点击数 ≥ WarmMinClicks 时走向量召回（Embedding），
//     剔除已点击后截断到 page_size
//   - 冷路径：无点击、或热路径剔除后为空时，随机兜底（Random）
//
// 热路径清空后落到冷路径是优雅降级，不是错误；两条路径都为空时
// 返回 core.ErrNoCandidates（客户端可见，目录不变则重试无意义）。
// 输出按召回顺序赋 1 起的 RetrievalPos。
type Engine struct {
	Warm    *Embedding
	Cold    *Random
	History HistoryStore
	Log     *logger.Logger

	// WarmMinClicks 热用户判定阈值，默认 1
	WarmMinClicks int
}

func (e *Engine) Name() string        { return "recall.engine" }
func (e *Engine) Kind() pipeline.Kind { return pipeline.KindRecall }

func (e *Engine) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	warmMin := e.WarmMinClicks
	if warmMin <= 0 {
		warmMin = 1
	}

	clickCount, err := e.History.ClickCount(ctx, rctx.AnonymousID)
	if err != nil {
		return nil, err
	}

	var items []*core.Item
	path := "cold"

	if clickCount >= int64(warmMin) {
		items, err = e.Warm.Recall(ctx, rctx)
		if err != nil {
			return nil, err
		}
		if len(items) > rctx.PageSize {
			items = items[:rctx.PageSize]
		}
		if len(items) > 0 {
			path = "warm"
		}
	}

	if len(items) == 0 {
		items, err = e.Cold.Recall(ctx, rctx)
		if err != nil {
			return nil, err
		}
	}

	if len(items) == 0 {
		return nil, core.ErrNoCandidates
	}

	for i, it := range items {
		it.RetrievalPos = i + 1
	}
	rctx.PutLabel("retrieval_path", utils.Label{Value: path, Source: "recall"})
	if e.Log != nil {
		e.Log.Debug("recall done",
			"anonymous_id", rctx.AnonymousID, "path", path,
			"click_count", clickCount, "candidates", len(items))
	}
	return items, nil
}
