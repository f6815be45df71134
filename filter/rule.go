package filter

import (
	"context"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pkg/dsl"
)

// RuleFilter 是配置驱动的规则过滤器：用 CEL 表达式描述"什么样的候选要剔除"，
// 业务规则改配置即可生效，不需要改代码。表达式在启动时编译一次。
//
// 例如 `label.recall_source == "random" && item.retrieval_pos > 50` 表示
// 剔除冷启动召回中位次过深的候选。
type RuleFilter struct {
	program *dsl.Program
}

// NewRuleFilter 编译一条 CEL 规则；表达式非法时在启动期报错。
func NewRuleFilter(expr string) (*RuleFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &RuleFilter{program: prg}, nil
}

func (f *RuleFilter) Name() string { return "filter.rule" }

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	return f.program.Eval(item, rctx)
}

var _ Filter = (*RuleFilter)(nil)
