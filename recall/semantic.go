package recall

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/conv"
	"github.com/evrec/evrec/pkg/vecmath"
)

// SemanticRecall 是纯语义召回源：查询向量对目录向量做相似度检索。
// 只在请求带自由文本查询时参与，与个性化信号无关。
type SemanticRecall struct {
	Index    *Index
	Embedder core.EmbeddingService
	Log      *logrus.Logger

	// Threshold 相似度阈值（默认 0.3）。
	Threshold float64
}

func (r *SemanticRecall) Name() string        { return "recall.semantic" }
func (r *SemanticRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *SemanticRecall) threshold() float64 {
	if r.Threshold > 0 {
		return r.Threshold
	}
	return 0.3
}

// Process 实现 Node 接口，直接调用 Recall。
func (r *SemanticRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。查询为空时直接返回空。
func (r *SemanticRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || rctx.Query == "" {
		return nil, nil
	}
	if err := r.Index.Ensure(ctx); err != nil {
		return nil, err
	}

	queryEmb, err := r.Embedder.Embed(ctx, rctx.Query)
	if err != nil || len(queryEmb) == 0 {
		if r.Log != nil {
			r.Log.WithField("query", rctx.Query).Debug("semantic: query embedding failed")
		}
		return nil, nil
	}

	num := int(conv.ConfigGetInt64(rctx.Params, "num_recommendations", 10))

	out := make([]*core.Item, 0, num)
	for _, eventID := range r.Index.IDs() {
		f, ok := r.Index.Get(ctx, eventID)
		if !ok || f == nil || len(f.Embedding) == 0 {
			continue
		}
		sim := vecmath.Cosine(queryEmb, f.Embedding)
		if sim <= r.threshold() {
			continue
		}
		it := core.NewItem(eventID)
		it.Name = f.Name
		it.Category = f.Category
		it.Score = sim
		it.Confidence = sim
		it.SetComponent(core.ApproachSemantic, sim, sim)
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > num {
		out = out[:num]
	}
	return out, nil
}

var _ Source = (*SemanticRecall)(nil)
var _ pipeline.Node = (*SemanticRecall)(nil)
