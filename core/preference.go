package core

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"
)

// PreferenceVector 是用户偏好的核心抽象：交互历史加权聚合出的
// 向量 + 类目/时段亲和度 + 置信度。
//
// 不变式：
//   - InteractionCount > 0 时 Embedding 为单位向量（L2 范数 == 1 ± 1e-6）
//   - 所有权重非负，Confidence ∈ [0,1]
type PreferenceVector struct {
	UserID string

	// Embedding 是近期查询向量的加权平均（L2 归一化），维度与物品向量一致。
	Embedding []float64

	// Confidence 综合交互量、查询多样性、近期活跃度、成功率。
	Confidence float64

	// CategoryWeights 是类目亲和度（0-1，不要求总和为 1）。
	CategoryWeights map[string]float64

	// TemporalWeights 是时段亲和度：小时桶（morning/afternoon/evening/night）
	// 各自归一，天桶（weekday/weekend）各自归一。
	TemporalWeights map[string]float64

	// SourceQueries 保留最近的原始查询（有界，最新的在尾部）。
	SourceQueries []string

	InteractionCount int
	ContentHash      string
	LastUpdated      time.Time
}

// NewPreferenceVector 创建空的偏好向量。
func NewPreferenceVector(userID string) *PreferenceVector {
	return &PreferenceVector{
		UserID:          userID,
		CategoryWeights: make(map[string]float64),
		TemporalWeights: make(map[string]float64),
		SourceQueries:   make([]string, 0),
		LastUpdated:     time.Now(),
	}
}

// AppendQuery 追加一条原始查询，超出 max 时丢弃最旧的。
func (p *PreferenceVector) AppendQuery(query string, max int) {
	p.SourceQueries = append(p.SourceQueries, query)
	if max > 0 && len(p.SourceQueries) > max {
		p.SourceQueries = p.SourceQueries[len(p.SourceQueries)-max:]
	}
}

// Rehash 依据当前向量与查询历史重算 ContentHash。
// 增量更新后调用，用于缓存一致性检查。
func (p *PreferenceVector) Rehash() {
	h := md5.New()
	var buf [8]byte
	for _, v := range p.Embedding {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, q := range p.SourceQueries {
		h.Write([]byte(q))
	}
	p.ContentHash = hex.EncodeToString(h.Sum(nil))
}

// Clone 返回深拷贝，缓存对外只交出副本，避免调用方改写缓存内容。
func (p *PreferenceVector) Clone() *PreferenceVector {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Embedding = append([]float64(nil), p.Embedding...)
	cp.SourceQueries = append([]string(nil), p.SourceQueries...)
	cp.CategoryWeights = make(map[string]float64, len(p.CategoryWeights))
	for k, v := range p.CategoryWeights {
		cp.CategoryWeights[k] = v
	}
	cp.TemporalWeights = make(map[string]float64, len(p.TemporalWeights))
	for k, v := range p.TemporalWeights {
		cp.TemporalWeights[k] = v
	}
	return &cp
}

// CategoryWeight 获取类目亲和度，未知类目返回 0。
func (p *PreferenceVector) CategoryWeight(category string) float64 {
	if p == nil || p.CategoryWeights == nil {
		return 0
	}
	return p.CategoryWeights[category]
}

// TemporalWeight 获取时段亲和度，未知时段返回 0。
func (p *PreferenceVector) TemporalWeight(bucket string) float64 {
	if p == nil || p.TemporalWeights == nil {
		return 0
	}
	return p.TemporalWeights[bucket]
}
