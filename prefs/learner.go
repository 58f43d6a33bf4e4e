package prefs

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pkg/vecmath"
)

// Config 是偏好学习器的配置，零值字段取默认值。
type Config struct {
	// MinInteractions 低于该交互数不学习，返回空（默认 3）。
	MinInteractions int

	// DecayDays 时间衰减常数，权重 = exp(-days/DecayDays)（默认 30）。
	DecayDays float64

	// MaxQueries 参与聚合的加权查询数上限（默认 20）。
	MaxQueries int

	// CacheTTL 缓存向量的新鲜期，期内非强制调用直接复用（默认 24h）。
	CacheTTL time.Duration

	// LearningRate 增量更新的 EMA 步长（默认 0.1）。
	LearningRate float64

	// SimilarityThreshold 相似用户检索的最低置信度（默认 0.3）。
	SimilarityThreshold float64
}

func (c *Config) withDefaults() {
	if c.MinInteractions <= 0 {
		c.MinInteractions = 3
	}
	if c.DecayDays <= 0 {
		c.DecayDays = 30
	}
	if c.MaxQueries <= 0 {
		c.MaxQueries = 20
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.3
	}
}

// Learner 从交互历史学习用户偏好向量。
//
// 进程内缓存（偏好向量、查询向量）由读写锁保护，同一用户并发学习
// 后写者胜。对外只交出 Clone 副本。
type Learner struct {
	Interactions core.InteractionStore
	Embedder     core.EmbeddingService
	Log          *logrus.Logger

	cfg Config

	mu       sync.RWMutex
	vectors  map[string]*core.PreferenceVector
	embCache map[string][]float64

	// now 可注入，测试用
	now func() time.Time
}

// NewLearner 创建偏好学习器。
func NewLearner(interactions core.InteractionStore, embedder core.EmbeddingService, log *logrus.Logger, cfg Config) *Learner {
	cfg.withDefaults()
	if log == nil {
		log = logrus.New()
	}
	return &Learner{
		Interactions: interactions,
		Embedder:     embedder,
		Log:          log,
		cfg:          cfg,
		vectors:      make(map[string]*core.PreferenceVector),
		embCache:     make(map[string][]float64),
		now:          time.Now,
	}
}

// weightedQuery 是一条参与聚合的查询及其衰减权重。
type weightedQuery struct {
	query  string
	weight float64
}

// Learn 学习（或复用）用户的偏好向量。
//
// 交互数不足或全部查询向量生成失败时返回 (nil, nil)：冷启动不是错误，
// 由上层走降级路径。force 为 true 时跳过缓存新鲜期检查。
func (l *Learner) Learn(ctx context.Context, userID string, force bool) (*core.PreferenceVector, error) {
	if !force {
		if cached := l.Cached(userID); cached != nil && l.now().Sub(cached.LastUpdated) < l.cfg.CacheTTL {
			return cached, nil
		}
	}

	interactions, err := l.Interactions.ListInteractions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(interactions) < l.cfg.MinInteractions {
		l.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"count":   len(interactions),
		}).Debug("prefs: not enough interactions")
		return nil, nil
	}

	now := l.now()

	// 时间衰减 × 查询类型 × 成功倍率，取权重最高的若干条查询
	weighted := make([]weightedQuery, 0, len(interactions))
	for _, in := range interactions {
		q := strings.TrimSpace(in.Query)
		if len(q) < 3 {
			continue
		}
		days := now.Sub(in.Timestamp).Hours() / 24
		if days < 0 {
			days = 0
		}
		w := math.Exp(-days / l.cfg.DecayDays)
		switch in.QueryType {
		case core.QueryTypeEvent, core.QueryTypeSpeaker:
			w *= 1.2
		case core.QueryTypeDate:
			w *= 1.1
		}
		if in.Success {
			w *= 1.1
		}
		weighted = append(weighted, weightedQuery{query: q, weight: w})
	}
	if len(weighted) == 0 {
		return nil, nil
	}
	sort.SliceStable(weighted, func(i, j int) bool { return weighted[i].weight > weighted[j].weight })
	if len(weighted) > l.cfg.MaxQueries {
		weighted = weighted[:l.cfg.MaxQueries]
	}

	// 逐条生成查询向量，失败的丢弃
	vecs := make([][]float64, 0, len(weighted))
	weights := make([]float64, 0, len(weighted))
	kept := make([]string, 0, len(weighted))
	for _, wq := range weighted {
		emb, err := l.embed(ctx, wq.query)
		if err != nil || len(emb) == 0 {
			l.Log.WithFields(logrus.Fields{
				"user_id": userID,
				"query":   wq.query,
			}).Debug("prefs: embedding failed, skip query")
			continue
		}
		vecs = append(vecs, emb)
		weights = append(weights, wq.weight)
		kept = append(kept, wq.query)
	}
	if len(vecs) == 0 {
		return nil, nil
	}

	embedding := vecmath.L2Normalize(vecmath.WeightedMean(vecs, weights))

	vec := core.NewPreferenceVector(userID)
	vec.Embedding = embedding
	vec.CategoryWeights = categoryWeightsOf(interactions)
	vec.TemporalWeights = temporalWeightsOf(interactions)
	vec.SourceQueries = kept
	vec.InteractionCount = len(interactions)
	vec.Confidence = confidenceOf(interactions, kept, now)
	vec.LastUpdated = now
	vec.Rehash()

	l.mu.Lock()
	l.vectors[userID] = vec
	l.mu.Unlock()

	l.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"queries":    len(kept),
		"confidence": vec.Confidence,
	}).Info("prefs: learned preference vector")

	return vec.Clone(), nil
}

// UpdateFromInteraction 用一条新交互对缓存向量做 EMA 微调。
//
// 返回 false 表示本次更新被跳过（查询过短、向量生成失败）。
// 无缓存向量时退回全量学习。
func (l *Learner) UpdateFromInteraction(ctx context.Context, userID string, in *core.Interaction) (bool, error) {
	q := strings.TrimSpace(in.Query)
	if len(q) < 3 {
		return false, nil
	}

	l.mu.RLock()
	old := l.vectors[userID]
	l.mu.RUnlock()
	if old == nil {
		vec, err := l.Learn(ctx, userID, true)
		if err != nil {
			return false, err
		}
		return vec != nil, nil
	}

	emb, err := l.embed(ctx, q)
	if err != nil || len(emb) == 0 {
		return false, nil
	}
	emb = vecmath.L2Normalize(emb)

	lr := l.cfg.LearningRate
	l.mu.Lock()
	vec := l.vectors[userID]
	if vec == nil {
		l.mu.Unlock()
		return false, nil
	}
	blended := vecmath.Add(vecmath.Scale(vec.Embedding, 1-lr), vecmath.Scale(emb, lr))
	vec.Embedding = vecmath.L2Normalize(blended)
	vec.InteractionCount++
	vec.AppendQuery(q, l.cfg.MaxQueries)
	vec.LastUpdated = l.now()
	vec.Rehash()
	l.mu.Unlock()

	return true, nil
}

// UserSimilarity 是相似用户检索的一条结果。
type UserSimilarity struct {
	UserID string
	Score  float64
}

// SimilarUsers 在缓存向量中检索与目标用户最相近的用户。
// 相似度 = cosine × min(双方置信度)，低置信度用户不参与。
func (l *Learner) SimilarUsers(userID string, topK int) []UserSimilarity {
	if topK <= 0 {
		topK = 5
	}

	l.mu.RLock()
	target := l.vectors[userID]
	if target == nil || target.Confidence < l.cfg.SimilarityThreshold {
		l.mu.RUnlock()
		return nil
	}
	results := make([]UserSimilarity, 0, len(l.vectors))
	for id, vec := range l.vectors {
		if id == userID || vec.Confidence < l.cfg.SimilarityThreshold {
			continue
		}
		sim := vecmath.Cosine(target.Embedding, vec.Embedding)
		conf := math.Min(target.Confidence, vec.Confidence)
		results = append(results, UserSimilarity{UserID: id, Score: sim * conf})
	}
	l.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Cached 返回缓存中的偏好向量副本，没有时返回 nil。不触发任何 I/O。
func (l *Learner) Cached(userID string) *core.PreferenceVector {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.vectors[userID].Clone()
}

// embed 带缓存地生成查询向量，按原始查询串精确命中。
func (l *Learner) embed(ctx context.Context, query string) ([]float64, error) {
	l.mu.RLock()
	cached, ok := l.embCache[query]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}
	emb, err := l.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.embCache[query] = emb
	l.mu.Unlock()
	return emb, nil
}

// categoryWeightsOf 按关键词命中累计成功加权计数，再除以交互总数。
func categoryWeightsOf(interactions []*core.Interaction) map[string]float64 {
	weights := make(map[string]float64)
	for _, in := range interactions {
		inc := 1.0
		if in.Success {
			inc = 1.1
		}
		for _, category := range matchCategories(in.Query) {
			weights[category] += inc
		}
	}
	total := float64(len(interactions))
	for k, v := range weights {
		w := v / total
		if w > 1 {
			w = 1
		}
		weights[k] = w
	}
	return weights
}

// temporalWeightsOf 统计交互落在各时段的比例。
// 小时桶之间归一，天桶之间单独归一。
func temporalWeightsOf(interactions []*core.Interaction) map[string]float64 {
	hourCounts := make(map[string]float64)
	dayCounts := make(map[string]float64)
	for _, in := range interactions {
		hourCounts[core.TimeOfDayBucket(in.Timestamp.Hour())]++
		dayCounts[core.DayBucket(in.Timestamp.Weekday())]++
	}
	weights := make(map[string]float64, len(hourCounts)+len(dayCounts))
	total := float64(len(interactions))
	for k, v := range hourCounts {
		weights[k] = v / total
	}
	for k, v := range dayCounts {
		weights[k] = v / total
	}
	return weights
}

// confidenceOf 综合交互量、查询多样性、近期活跃度与成功率。
func confidenceOf(interactions []*core.Interaction, kept []string, now time.Time) float64 {
	n := float64(len(interactions))

	unique := make(map[string]struct{}, len(kept))
	for _, q := range kept {
		unique[strings.ToLower(q)] = struct{}{}
	}
	uniqRatio := 0.0
	if len(kept) > 0 {
		uniqRatio = float64(len(unique)) / float64(len(kept))
	}

	var recent, success float64
	weekAgo := now.Add(-7 * 24 * time.Hour)
	for _, in := range interactions {
		if in.Timestamp.After(weekAgo) {
			recent++
		}
		if in.Success {
			success++
		}
	}

	conf := 0.4*math.Min(1, n/20) +
		0.2*uniqRatio +
		0.2*math.Min(1, recent/5) +
		0.2*(success/n)
	return math.Max(0, math.Min(1, conf))
}
