package rerank

import (
	"context"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/conv"
)

// TopN 是截断 Node：只保留前 N 个物品。
// N 为 0 时读取请求参数 num_recommendations（默认 10）。
type TopN struct {
	N int
}

func (n *TopN) Name() string        { return "rerank.topn" }
func (n *TopN) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopN) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		limit = int(conv.ConfigGetInt64(rctx.Params, "num_recommendations", 10))
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}

var _ pipeline.Node = (*TopN)(nil)
