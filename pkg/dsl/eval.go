package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/newsrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

// getCELEnv 初始化并复用 CEL 环境，定义可引用的变量。
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是一条编译好的候选规则，使用 CEL (Common Expression Language) 表达。
// 表达式在启动时编译一次，之后每个请求只做求值，线程安全。
//
// 可引用的变量：
//   - item:  id / title / retrieval_score / retrieval_pos / rank_score / final_score / features
//   - label: 候选上的 Label 值表，如 label.recall_source == "emb"
//   - rctx:  anonymous_id / surface / page_size / locale / category
//
// 示例：
//   - `item.retrieval_score < 0.1 && rctx.surface == "home"`
//   - `label.recall_source == "random" && rctx.category != ""`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译一条规则表达式。空表达式非法。
func Compile(expr string) (*Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("dsl: empty expression")
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: init env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// Expr 返回原始表达式（用于日志/explain）。
func (p *Program) Expr() string { return p.expr }

// Eval 在一个候选上求值，返回布尔结果；表达式结果不是布尔时报错。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"item":  itemActivation(item),
		"label": labelActivation(item),
		"rctx":  rctxActivation(rctx),
	})
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", p.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q did not evaluate to bool", p.expr)
	}
	return b, nil
}

func itemActivation(item *core.Item) map[string]any {
	if item == nil {
		return map[string]any{}
	}
	return map[string]any{
		"id":              item.ID,
		"title":           item.Title,
		"retrieval_score": item.RetrievalScore,
		"retrieval_pos":   item.RetrievalPos,
		"rank_score":      item.RankScore,
		"final_score":     item.FinalScore,
		"features":        item.Features,
	}
}

func labelActivation(item *core.Item) map[string]string {
	out := make(map[string]string)
	if item == nil {
		return out
	}
	for k, lbl := range item.Labels {
		out[k] = lbl.Value
	}
	return out
}

func rctxActivation(rctx *core.RecommendContext) map[string]any {
	if rctx == nil {
		return map[string]any{}
	}
	return map[string]any{
		"anonymous_id": rctx.AnonymousID,
		"surface":      rctx.Surface,
		"page_size":    rctx.PageSize,
		"locale":       rctx.Locale,
		"category":     rctx.Category,
	}
}
