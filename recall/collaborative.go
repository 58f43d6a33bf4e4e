package recall

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/conv"
)

// Engine 是协同过滤引擎的网关接口。引擎是黑盒协作方：
// 输入用户，输出候选物品与原始分值，内部算法不在本子系统约定内。
type Engine interface {
	Name() string

	// Recommend 返回 map[eventID]rawScore，分值量纲由引擎自定。
	Recommend(ctx context.Context, userID string, topK int) (map[string]float64, error)
}

// CollaborativeRecall 把协同过滤引擎包装为召回源。
// 原始分值按最大值归一到 [0,1]，作为 collaborative 分量写入物品。
type CollaborativeRecall struct {
	Engine Engine
	Log    *logrus.Logger

	// Confidence 是该路召回的固定置信度（默认 0.6，引擎不提供逐物品置信度）。
	Confidence float64
}

func (r *CollaborativeRecall) Name() string        { return "recall.collaborative" }
func (r *CollaborativeRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *CollaborativeRecall) confidence() float64 {
	if r.Confidence > 0 {
		return r.Confidence
	}
	return 0.6
}

// Process 实现 Node 接口，直接调用 Recall。
func (r *CollaborativeRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
func (r *CollaborativeRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Engine == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	num := int(conv.ConfigGetInt64(rctx.Params, "num_recommendations", 10))
	scores, err := r.Engine.Recommend(ctx, rctx.UserID, num)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max <= 0 {
		return nil, nil
	}

	out := make([]*core.Item, 0, len(scores))
	for eventID, s := range scores {
		it := core.NewItem(eventID)
		it.Score = s / max
		it.Confidence = r.confidence()
		it.SetComponent(core.ApproachCollaborative, it.Score, r.confidence())
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > num {
		out = out[:num]
	}
	return out, nil
}

// CFStore 是物品协同过滤的存储接口。
type CFStore interface {
	// GetUserItems 获取用户交互过的物品及其权重，map[eventID]score。
	GetUserItems(ctx context.Context, userID string) (map[string]float64, error)

	// GetItemUsers 获取与物品交互过的用户及其权重，map[userID]score。
	GetItemUsers(ctx context.Context, eventID string) (map[string]float64, error)

	// GetAllItems 获取全部物品 ID。
	GetAllItems(ctx context.Context) ([]string, error)
}

// ItemCF 是基于物品的协同过滤引擎（i2i）。
//
// "被同一批用户交互过的物品，相互相似"：对用户历史中的每个物品，
// 用共同交互用户的 cosine 相似度找近邻，按历史权重累加到候选上。
// 默认的 Engine 实现，可被任何外部引擎替换。
type ItemCF struct {
	Store CFStore

	// TopKSimilarItems 每个历史物品保留的近邻数（默认 100）。
	TopKSimilarItems int

	// MinCommonUsers 共同用户数低于该值不计相似度（默认 2）。
	MinCommonUsers int
}

func (e *ItemCF) Name() string { return "cf.i2i" }

// Recommend 实现 Engine 接口。
func (e *ItemCF) Recommend(ctx context.Context, userID string, topK int) (map[string]float64, error) {
	if e.Store == nil || userID == "" {
		return nil, nil
	}

	userItems, err := e.Store.GetUserItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(userItems) == 0 {
		return nil, nil
	}

	allItems, err := e.Store.GetAllItems(ctx)
	if err != nil {
		return nil, err
	}

	topKSimilar := e.TopKSimilarItems
	if topKSimilar <= 0 {
		topKSimilar = 100
	}
	minCommon := e.MinCommonUsers
	if minCommon <= 0 {
		minCommon = 2
	}

	type itemSim struct {
		eventID string
		sim     float64
	}

	scores := make(map[string]float64)
	for historyID, historyScore := range userItems {
		historyUsers, err := e.Store.GetItemUsers(ctx, historyID)
		if err != nil || len(historyUsers) == 0 {
			continue
		}

		sims := make([]itemSim, 0)
		for _, candidateID := range allItems {
			if _, interacted := userItems[candidateID]; interacted {
				continue
			}
			candidateUsers, err := e.Store.GetItemUsers(ctx, candidateID)
			if err != nil || len(candidateUsers) == 0 {
				continue
			}
			sim := cosineOverlap(historyUsers, candidateUsers, minCommon)
			if sim > 0 {
				sims = append(sims, itemSim{eventID: candidateID, sim: sim})
			}
		}

		sort.SliceStable(sims, func(i, j int) bool { return sims[i].sim > sims[j].sim })
		if len(sims) > topKSimilar {
			sims = sims[:topKSimilar]
		}
		for _, s := range sims {
			scores[s.eventID] += s.sim * historyScore
		}
	}

	if topK > 0 && len(scores) > topK {
		type scored struct {
			eventID string
			score   float64
		}
		all := make([]scored, 0, len(scores))
		for id, s := range scores {
			all = append(all, scored{eventID: id, score: s})
		}
		sort.SliceStable(all, func(i, j int) bool {
			if all[i].score == all[j].score {
				return all[i].eventID < all[j].eventID
			}
			return all[i].score > all[j].score
		})
		all = all[:topK]
		scores = make(map[string]float64, topK)
		for _, s := range all {
			scores[s.eventID] = s.score
		}
	}
	return scores, nil
}

// cosineOverlap 按共同用户的权重内积计算两物品的 cosine 相似度。
func cosineOverlap(a, b map[string]float64, minCommon int) float64 {
	common := 0
	var dot float64
	for userID, wa := range a {
		if wb, ok := b[userID]; ok {
			common++
			dot += wa * wb
		}
	}
	if common < minCommon || dot == 0 {
		return 0
	}
	var na, nb float64
	for _, w := range a {
		na += w * w
	}
	for _, w := range b {
		nb += w * w
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Source = (*CollaborativeRecall)(nil)
var _ pipeline.Node = (*CollaborativeRecall)(nil)
var _ Engine = (*ItemCF)(nil)
