package pipeline

import (
	"context"

	"github.com/rushteam/newsrec/core"
)

// Pipeline 是在线推荐的核心抽象：把一次请求拆成可组合的 Node 链。
// 本服务的标准链路是 召回 → 规则过滤 → 特征补全 → 排序 → 多样性重排 → 截断。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
