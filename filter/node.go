package filter

import (
	"context"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 任何一个过滤器返回 true，该物品即被过滤；过滤器自身出错按
// 放行处理，不中断流程。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		shouldFilter := false
		filterReason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				continue
			}
			if ok {
				shouldFilter = true
				filterReason = f.Name()
				break
			}
		}

		if shouldFilter {
			// 记录过滤原因，方便调试/观测
			item.PutLabel("filtered", utils.Label{
				Value:  "true",
				Source: filterReason,
			})
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

var _ pipeline.Node = (*FilterNode)(nil)
