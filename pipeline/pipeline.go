package pipeline

import (
	"context"
	"fmt"

	"github.com/evrec/evrec/core"
)

// Pipeline 是 evrec 的核心抽象：把推荐逻辑拆成可组合的 Node 链。
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
		if node == nil {
			continue
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
