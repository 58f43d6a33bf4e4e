package core

import "github.com/evrec/evrec/pkg/utils"

// Item 是推荐链路中的统一承载结构：分路得分、融合得分、置信度、解释、标签。
// ComponentScores/ComponentConfidences 按 Approach 记录，融合节点据此计算最终 Score。
type Item struct {
	ID       string
	Name     string
	Category string

	// Score 是融合后的最终得分；召回阶段各路只写 ComponentScores。
	Score float64

	// ComponentScores 记录每一路的原始得分，ComponentConfidences 记录每一路的置信度。
	ComponentScores      map[Approach]float64
	ComponentConfidences map[Approach]float64

	// Confidence 是融合后的整体置信度，Explanation 是面向用户的推荐理由。
	Confidence  float64
	Explanation string

	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:                   id,
		ComponentScores:      make(map[Approach]float64),
		ComponentConfidences: make(map[Approach]float64),
		Features:             make(map[string]float64),
		Meta:                 make(map[string]any),
		Labels:               make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// SetComponent 写入某一路的得分与置信度。
func (it *Item) SetComponent(a Approach, score, confidence float64) {
	if it.ComponentScores == nil {
		it.ComponentScores = make(map[Approach]float64)
	}
	if it.ComponentConfidences == nil {
		it.ComponentConfidences = make(map[Approach]float64)
	}
	it.ComponentScores[a] = score
	it.ComponentConfidences[a] = confidence
}

// HasApproach 返回该物品是否由某一路贡献过得分。
func (it *Item) HasApproach(a Approach) bool {
	_, ok := it.ComponentScores[a]
	return ok
}

// ApproachCount 返回贡献过得分的路数（用于共识加分）。
func (it *Item) ApproachCount() int {
	return len(it.ComponentScores)
}

// MergeFrom 合并另一个同 ID Item 的分路得分与标签。
// 展示元信息（Name/Category/Features）以首次出现的为准，不被覆盖。
func (it *Item) MergeFrom(other *Item) {
	if other == nil {
		return
	}
	for a, s := range other.ComponentScores {
		if _, ok := it.ComponentScores[a]; !ok {
			it.SetComponent(a, s, other.ComponentConfidences[a])
		}
	}
	for k, v := range other.Labels {
		it.PutLabel(k, v)
	}
	for k, v := range other.Features {
		if _, ok := it.Features[k]; !ok {
			if it.Features == nil {
				it.Features = make(map[string]float64)
			}
			it.Features[k] = v
		}
	}
	if it.Name == "" {
		it.Name = other.Name
	}
	if it.Category == "" {
		it.Category = other.Category
	}
}
