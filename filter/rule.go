package filter

import (
	"context"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pkg/dsl"
)

// RuleFilter 是基于 CEL 表达式的规则过滤器。
// 表达式求值为 true 的物品被过滤，例如：
//
//	item.score < 0.2 || label("recall_source") == "recall.hot"
type RuleFilter struct {
	// Expr 是 CEL 布尔表达式
	Expr string
}

func (f *RuleFilter) Name() string {
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Expr == "" || item == nil {
		return false, nil
	}
	return dsl.NewEval(item, rctx).Evaluate(f.Expr)
}

var _ Filter = (*RuleFilter)(nil)
