package recall

import (
	"context"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/conv"
)

// Hot 是热门召回源：直接从目录取热度 TopK，无个性化。
// 兜底路径使用固定分值与低置信度。
type Hot struct {
	Catalog core.CatalogStore

	// Score / Confidence 兜底物品的固定分值（默认 0.7 / 0.5）。
	Score      float64
	Confidence float64
}

func (r *Hot) Name() string        { return "recall.hot" }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Hot) score() float64 {
	if r.Score > 0 {
		return r.Score
	}
	return 0.7
}

func (r *Hot) confidence() float64 {
	if r.Confidence > 0 {
		return r.Confidence
	}
	return 0.5
}

// Process 实现 Node 接口，直接调用 Recall。
func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
func (r *Hot) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Catalog == nil {
		return nil, nil
	}
	num := 10
	if rctx != nil {
		num = int(conv.ConfigGetInt64(rctx.Params, "num_recommendations", 10))
	}

	events, err := r.Catalog.HotEvents(ctx, num)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Item, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.ID == "" {
			continue
		}
		it := core.NewItem(ev.ID)
		it.Name = ev.Name
		it.Category = ev.Category
		it.Score = r.score()
		it.Confidence = r.confidence()
		it.Explanation = "popular right now"
		it.SetComponent(core.ApproachPopularity, r.score(), r.confidence())
		out = append(out, it)
	}
	return out, nil
}

var _ Source = (*Hot)(nil)
var _ pipeline.Node = (*Hot)(nil)
