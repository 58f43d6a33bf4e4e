package recall

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/conv"
	"github.com/evrec/evrec/pkg/vecmath"
)

// PreferenceProvider 是偏好学习器的最小依赖面。
type PreferenceProvider interface {
	Learn(ctx context.Context, userID string, force bool) (*core.PreferenceVector, error)
}

// ContentRecall 是基于内容的个性化召回源。
//
// 打分 = 0.6×语义相似度 + 0.2×类目加成 + 0.1×时段加成，
// 再乘以置信度因子 (0.5 + 0.5×用户置信度)，低于阈值的丢弃。
//
// 冷启动（无偏好向量）时退化为纯查询相似度检索，固定低置信度。
// 单个物品的特征缺失按跳过处理，不中断整批。
type ContentRecall struct {
	Index    *Index
	Learner  PreferenceProvider
	Embedder core.EmbeddingService

	// Interactions 为空时排除集按空处理（协作方未接入）。
	Interactions core.InteractionStore

	Log *logrus.Logger

	// MinScore 最终得分的淘汰线（默认 0.1）。
	MinScore float64

	// ColdStartThreshold 冷启动查询相似度阈值（默认 0.3）。
	ColdStartThreshold float64
}

func (r *ContentRecall) Name() string        { return "recall.content" }
func (r *ContentRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *ContentRecall) logger() logrus.FieldLogger {
	if r.Log != nil {
		return r.Log
	}
	return logrus.StandardLogger()
}

func (r *ContentRecall) minScore() float64 {
	if r.MinScore > 0 {
		return r.MinScore
	}
	return 0.1
}

func (r *ContentRecall) coldStartThreshold() float64 {
	if r.ColdStartThreshold > 0 {
		return r.ColdStartThreshold
	}
	return 0.3
}

// Process 实现 Node 接口，直接调用 Recall。
func (r *ContentRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
func (r *ContentRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	if err := r.Index.Ensure(ctx); err != nil {
		return nil, err
	}

	num := int(conv.ConfigGetInt64(rctx.Params, "num_recommendations", 10))
	excludeInteracted := true
	if v, ok := rctx.Params["exclude_interacted"]; ok {
		if b, ok := v.(bool); ok {
			excludeInteracted = b
		}
	}

	pref := rctx.Preference
	if pref == nil && r.Learner != nil {
		var err error
		pref, err = r.Learner.Learn(ctx, rctx.UserID, false)
		if err != nil {
			return nil, err
		}
	}
	if pref == nil {
		return r.coldStart(ctx, rctx.Query, num)
	}

	exclude := map[string]struct{}{}
	if excludeInteracted && r.Interactions != nil {
		ids, err := r.Interactions.InteractedEventIDs(ctx, rctx.UserID)
		if err != nil {
			r.logger().WithField("user_id", rctx.UserID).WithError(err).Warn("content: load interacted set failed, skip exclusion")
		} else {
			exclude = ids
		}
	}

	var queryEmb []float64
	if rctx.Query != "" {
		emb, err := r.Embedder.Embed(ctx, rctx.Query)
		if err != nil {
			r.logger().WithField("query", rctx.Query).Debug("content: query embedding failed")
		} else {
			queryEmb = emb
		}
	}

	out := make([]*core.Item, 0, num)
	for _, eventID := range r.Index.IDs() {
		if _, skip := exclude[eventID]; skip {
			continue
		}
		f, ok := r.Index.Get(ctx, eventID)
		if !ok || f == nil || len(f.Embedding) == 0 {
			continue
		}

		var base, personalized float64
		if len(queryEmb) > 0 {
			base = vecmath.Cosine(queryEmb, f.Embedding)
		}
		if len(pref.Embedding) > 0 {
			personalized = vecmath.Cosine(pref.Embedding, f.Embedding)
		}
		semantic := base
		if personalized > semantic {
			semantic = personalized
		}

		categoryBoost := pref.CategoryWeight(strings.ToLower(f.Category)) * 0.3

		dayBucket := "weekday"
		if f.Temporal.IsWeekend {
			dayBucket = "weekend"
		}
		temporalBoost := 0.2 * (0.7*pref.TemporalWeight(f.Temporal.TimeOfDay) + 0.3*pref.TemporalWeight(dayBucket))

		final := 0.6*semantic + 0.2*categoryBoost + 0.1*temporalBoost
		final *= 0.5 + 0.5*pref.Confidence
		if final <= r.minScore() {
			continue
		}

		featuresUsed := 0
		if semantic > 0 {
			featuresUsed++
		}
		if categoryBoost > 0 {
			featuresUsed++
		}
		if temporalBoost > 0 {
			featuresUsed++
		}
		if base > 0 {
			featuresUsed++
		}
		confidence := minF(1, float64(featuresUsed)/4) * pref.Confidence

		it := core.NewItem(eventID)
		it.Name = f.Name
		it.Category = f.Category
		it.Score = final
		it.Confidence = confidence
		it.Explanation = explain(semantic, categoryBoost, temporalBoost)
		it.SetComponent(core.ApproachContent, final, confidence)
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > num {
		out = out[:num]
	}
	return out, nil
}

// coldStart 无偏好向量时的降级路径：纯查询相似度检索。
func (r *ContentRecall) coldStart(ctx context.Context, query string, num int) ([]*core.Item, error) {
	if query == "" {
		return nil, nil
	}
	queryEmb, err := r.Embedder.Embed(ctx, query)
	if err != nil || len(queryEmb) == 0 {
		r.logger().WithField("query", query).Debug("content: cold-start query embedding failed")
		return nil, nil
	}

	out := make([]*core.Item, 0, num)
	for _, eventID := range r.Index.IDs() {
		f, ok := r.Index.Get(ctx, eventID)
		if !ok || f == nil || len(f.Embedding) == 0 {
			continue
		}
		sim := vecmath.Cosine(queryEmb, f.Embedding)
		if sim <= r.coldStartThreshold() {
			continue
		}
		it := core.NewItem(eventID)
		it.Name = f.Name
		it.Category = f.Category
		it.Score = sim
		it.Confidence = 0.5
		it.Explanation = "matches your search"
		it.SetComponent(core.ApproachContent, sim, 0.5)
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > num {
		out = out[:num]
	}
	return out, nil
}

// explain 按各分量是否越过固定阈值拼接解释片段。
func explain(semantic, categoryBoost, temporalBoost float64) string {
	var parts []string
	if semantic > 0.7 {
		parts = append(parts, "high semantic relevance to your interests")
	} else if semantic > 0.4 {
		parts = append(parts, "related to your interests")
	}
	if categoryBoost > 0.05 {
		parts = append(parts, "matches your preferred categories")
	}
	if temporalBoost > 0.02 {
		parts = append(parts, "fits your usual schedule")
	}
	if len(parts) == 0 {
		return "general recommendation"
	}
	return strings.Join(parts, "; ")
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

var _ Source = (*ContentRecall)(nil)
var _ pipeline.Node = (*ContentRecall)(nil)
