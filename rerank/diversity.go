package rerank

import (
	"context"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
)

// Diversity 是类目打散 ReRank Node：按类目分组后轮询交错，
// 避免同类目活动扎堆。只调整顺序，绝不增删物品。
//
// 物品数 <= 3 或 Factor <= 0 时不生效。
type Diversity struct {
	// Factor 打散强度开关；<= 0 关闭打散。
	Factor float64
}

func (n *Diversity) Name() string        { return "rerank.diversity" }
func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Factor <= 0 || len(items) <= 3 {
		return items, nil
	}

	// 按类目分组，组顺序按类目首次出现
	groups := make(map[string][]*core.Item)
	var order []string
	for _, it := range items {
		if it == nil {
			continue
		}
		cat := it.Category
		if _, ok := groups[cat]; !ok {
			order = append(order, cat)
		}
		groups[cat] = append(groups[cat], it)
	}
	if len(order) <= 1 {
		return items, nil
	}

	maxPerCategory := len(items) / len(order)
	if maxPerCategory < 2 {
		maxPerCategory = 2
	}

	out := make([]*core.Item, 0, len(items))
	taken := make(map[string]int, len(order))

	// 轮询各组队首，单类目取满 maxPerCategory 后跳过
	for len(out) < len(items) {
		progressed := false
		for _, cat := range order {
			group := groups[cat]
			if len(group) == 0 || taken[cat] >= maxPerCategory {
				continue
			}
			out = append(out, group[0])
			groups[cat] = group[1:]
			taken[cat]++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	// 余下的按原组顺序补齐，保证集合不变
	for _, cat := range order {
		out = append(out, groups[cat]...)
	}
	return out, nil
}

var _ pipeline.Node = (*Diversity)(nil)
