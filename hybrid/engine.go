package hybrid

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/feature"
	"github.com/evrec/evrec/filter"
	"github.com/evrec/evrec/rank"
	"github.com/evrec/evrec/recall"
	"github.com/evrec/evrec/rerank"
)

// Config 是混合推荐引擎的配置，零值字段取默认值。
type Config struct {
	// Weights 各路召回的默认融合权重；请求级权重优先。
	Weights map[core.Approach]float64

	// DiversityFactor 类目打散强度；<= 0 关闭（默认 0.3）。
	DiversityFactor float64

	// DisableFallback 为 true 时关闭热门兜底。
	DisableFallback bool

	// SourceTimeout 单路召回超时（默认 2s）。
	SourceTimeout time.Duration

	// MaxConcurrent 召回并发上限（0 不限制）。
	MaxConcurrent int
}

func (c *Config) withDefaults() {
	if c.DiversityFactor == 0 {
		c.DiversityFactor = 0.3
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 2 * time.Second
	}
}

// Request 是一次混合推荐请求。
type Request struct {
	UserID string
	Query  string

	// Num 返回条数（默认 10）。
	Num int

	// ExcludeInteracted 排除已交互活动（NewRequest 默认 true）。
	ExcludeInteracted bool

	// Weights 请求级融合权重，按原样使用，不做归一化。
	Weights map[core.Approach]float64
}

// NewRequest 创建带默认值的请求。
func NewRequest(userID string) *Request {
	return &Request{UserID: userID, Num: 10, ExcludeInteracted: true}
}

// Engine 是混合推荐引擎：并发跑内容/协同/语义召回，
// 加权融合 + 共识加成，热门兜底，类目打散。
//
// 初始化（目录特征加载）失败是硬错误；单路召回失败降级为空结果。
type Engine struct {
	Content       *recall.ContentRecall
	Collaborative *recall.CollaborativeRecall
	Semantic      *recall.SemanticRecall
	Hot           *recall.Hot

	Learner recall.PreferenceProvider
	Filters []filter.Filter

	// Enrich 可选的实时特征补充（Feast/Redis 等），在重排后执行。
	Enrich *feature.EnrichNode

	Log *logrus.Logger

	cfg Config

	initOnce sync.Once
	initErr  error

	mu            sync.RWMutex
	approachPrefs map[string]map[core.Approach]float64
}

// NewEngine 创建混合推荐引擎。
func NewEngine(content *recall.ContentRecall, collaborative *recall.CollaborativeRecall, semantic *recall.SemanticRecall, hot *recall.Hot, log *logrus.Logger, cfg Config) *Engine {
	cfg.withDefaults()
	if log == nil {
		log = logrus.New()
	}
	e := &Engine{
		Content:       content,
		Collaborative: collaborative,
		Semantic:      semantic,
		Hot:           hot,
		Log:           log,
		cfg:           cfg,
		approachPrefs: make(map[string]map[core.Approach]float64),
	}
	if content != nil {
		e.Learner = content.Learner
	}
	return e
}

// init 懒初始化：加载目录特征（有界样本）。失败向上传播。
func (e *Engine) init(ctx context.Context) error {
	e.initOnce.Do(func() {
		if e.Content != nil && e.Content.Index != nil {
			e.initErr = e.Content.Index.Ensure(ctx)
		}
	})
	return e.initErr
}

// Recommend 执行一次混合推荐。
func (e *Engine) Recommend(ctx context.Context, req *Request) ([]*core.Item, error) {
	if req == nil || req.UserID == "" {
		return nil, core.NewDomainError("hybrid", core.ErrorCodeInvalidInput, "user id is required")
	}
	if err := e.init(ctx); err != nil {
		return nil, err
	}

	num := req.Num
	if num <= 0 {
		num = 10
	}

	rctx := &core.RecommendContext{
		UserID: req.UserID,
		Query:  req.Query,
		Params: map[string]any{
			"num_recommendations": int64(num),
			"exclude_interacted":  req.ExcludeInteracted,
		},
	}
	if e.Learner != nil {
		pref, err := e.Learner.Learn(ctx, req.UserID, false)
		if err != nil {
			e.Log.WithField("user_id", req.UserID).WithError(err).Warn("hybrid: preference learning failed, continue cold")
		} else {
			rctx.Preference = pref
		}
	}

	// 语义召回只在有查询时参与
	sources := make([]recall.Source, 0, 3)
	if e.Content != nil {
		sources = append(sources, e.Content)
	}
	if e.Collaborative != nil {
		sources = append(sources, e.Collaborative)
	}
	if e.Semantic != nil && req.Query != "" {
		sources = append(sources, e.Semantic)
	}

	fanout := &recall.Fanout{
		Sources:       sources,
		Dedup:         true,
		Timeout:       e.cfg.SourceTimeout,
		MaxConcurrent: e.cfg.MaxConcurrent,
		Log:           e.Log,
	}
	items, err := fanout.Process(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	if len(e.Filters) > 0 {
		node := &filter.FilterNode{Filters: e.Filters}
		items, err = node.Process(ctx, rctx, items)
		if err != nil {
			return nil, err
		}
	}

	weights := req.Weights
	if len(weights) == 0 {
		weights = e.cfg.Weights
	}
	blend := &rank.Blend{Weights: weights}
	items, err = blend.Process(ctx, rctx, items)
	if err != nil {
		return nil, err
	}

	if len(items) > num {
		items = items[:num]
	}

	if len(items) < num && !e.cfg.DisableFallback && e.Hot != nil {
		items = e.padWithPopular(ctx, rctx, items, num)
	}

	diversity := &rerank.Diversity{Factor: e.cfg.DiversityFactor}
	items, err = diversity.Process(ctx, rctx, items)
	if err != nil {
		return nil, err
	}

	if e.Enrich != nil {
		items, err = e.Enrich.Process(ctx, rctx, items)
		if err != nil {
			return nil, err
		}
	}

	e.recordApproachPrefs(req.UserID, items)
	return items, nil
}

// padWithPopular 用热门活动补齐结果，固定分值、无个性化。
func (e *Engine) padWithPopular(ctx context.Context, rctx *core.RecommendContext, items []*core.Item, num int) []*core.Item {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.ID] = struct{}{}
	}

	popular, err := e.Hot.Recall(ctx, rctx)
	if err != nil {
		e.Log.WithError(err).Warn("hybrid: popularity fallback failed")
		return items
	}
	for _, it := range popular {
		if len(items) >= num {
			break
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		items = append(items, it)
	}
	return items
}

// recordApproachPrefs 记录本次响应中各路的平均融合分。
// 只读的观测数据，不回流进打分。
func (e *Engine) recordApproachPrefs(userID string, items []*core.Item) {
	sums := make(map[core.Approach]float64)
	counts := make(map[core.Approach]int)
	for _, it := range items {
		for approach := range it.ComponentScores {
			sums[approach] += it.Score
			counts[approach]++
		}
	}
	if len(sums) == 0 {
		return
	}
	means := make(map[core.Approach]float64, len(sums))
	for approach, sum := range sums {
		means[approach] = sum / float64(counts[approach])
	}

	e.mu.Lock()
	e.approachPrefs[userID] = means
	e.mu.Unlock()
}

// ApproachPreferences 返回用户最近一次响应的各路平均融合分副本。
func (e *Engine) ApproachPreferences(userID string) map[core.Approach]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	prefs, ok := e.approachPrefs[userID]
	if !ok {
		return nil
	}
	cp := make(map[core.Approach]float64, len(prefs))
	for k, v := range prefs {
		cp[k] = v
	}
	return cp
}
