package rank

import (
	"context"
	"sort"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/utils"
)

// DefaultWeights 是各路召回的默认融合权重。
// 调用方传入的权重按原样使用，不做归一化。
var DefaultWeights = map[core.Approach]float64{
	core.ApproachContent:       0.4,
	core.ApproachCollaborative: 0.3,
	core.ApproachSemantic:      0.2,
	core.ApproachPopularity:    0.1,
}

// Blend 是融合排序 Node：把各路召回写入的分量按权重加权求和。
//
//	score = Σ weight[approach] × component[approach]
//	      + ConsensusBonus × (命中路数 - 1)    （多于一路时）
//
// 置信度取各命中路置信度的均值（无置信度时 0.5）。
// 融合分低于 MinScore 的物品被丢弃。
type Blend struct {
	// Weights 为空时使用 DefaultWeights。
	Weights map[core.Approach]float64

	// ConsensusBonus 多路共识加成系数（默认 0.1）。
	ConsensusBonus float64

	// MinScore 淘汰线（默认 0.1，含等于）。
	MinScore float64
}

func (n *Blend) Name() string        { return "rank.blend" }
func (n *Blend) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *Blend) weights() map[core.Approach]float64 {
	if len(n.Weights) > 0 {
		return n.Weights
	}
	return DefaultWeights
}

func (n *Blend) consensusBonus() float64 {
	if n.ConsensusBonus > 0 {
		return n.ConsensusBonus
	}
	return 0.1
}

func (n *Blend) minScore() float64 {
	if n.MinScore > 0 {
		return n.MinScore
	}
	return 0.1
}

func (n *Blend) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	weights := n.weights()
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil || len(it.ComponentScores) == 0 {
			continue
		}

		var score float64
		var confSum float64
		var confN int
		for approach, s := range it.ComponentScores {
			score += weights[approach] * s
			if c, ok := it.ComponentConfidences[approach]; ok {
				confSum += c
				confN++
			}
		}
		if cnt := it.ApproachCount(); cnt > 1 {
			score += n.consensusBonus() * float64(cnt-1)
		}

		if score <= n.minScore() {
			continue
		}

		it.Score = score
		if confN > 0 {
			it.Confidence = confSum / float64(confN)
		} else {
			it.Confidence = 0.5
		}
		it.PutLabel("rank_model", utils.Label{Value: "blend", Source: "rank"})
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

var _ pipeline.Node = (*Blend)(nil)
