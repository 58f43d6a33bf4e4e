package config

import (
	"fmt"
	"time"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/filter"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/conv"
	"github.com/evrec/evrec/rank"
	"github.com/evrec/evrec/recall"
	"github.com/evrec/evrec/rerank"
)

// DefaultFactory 返回一个包含所有可配置 Node 的默认工厂。
//
// 需要运行时依赖（目录、向量服务、协同引擎）的 Node 不走配置文件，
// 由代码直接装配；工厂只覆盖纯配置可表达的部分。
func DefaultFactory() *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	factory.Register("recall.fanout", buildFanoutNode)
	factory.Register("rank.blend", buildBlendNode)
	factory.Register("rerank.diversity", buildDiversityNode)
	factory.Register("rerank.topn", buildTopNNode)
	factory.Register("filter", buildFilterNode)

	return factory
}

func buildFanoutNode(config map[string]interface{}) (pipeline.Node, error) {
	fanout := &recall.Fanout{
		Dedup:         conv.ConfigGet[bool](config, "dedup", true),
		MergeStrategy: conv.ConfigGet[string](config, "merge_strategy", "first"),
	}
	if sec := conv.ConfigGetInt64(config, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	if n := conv.ConfigGetInt64(config, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = int(n)
	}
	return fanout, nil
}

func buildBlendNode(config map[string]interface{}) (pipeline.Node, error) {
	blend := &rank.Blend{
		ConsensusBonus: conv.ConfigGetFloat64(config, "consensus_bonus", 0),
		MinScore:       conv.ConfigGetFloat64(config, "min_score", 0),
	}
	if weightsMap, ok := config["weights"].(map[string]interface{}); ok {
		weights := make(map[core.Approach]float64, len(weightsMap))
		for name, v := range weightsMap {
			approach := core.Approach(name)
			if !approach.Valid() {
				return nil, fmt.Errorf("unknown approach in weights: %s", name)
			}
			w, ok := conv.ToFloat64(v)
			if !ok {
				return nil, fmt.Errorf("weight for %s is not numeric", name)
			}
			weights[approach] = w
		}
		blend.Weights = weights
	}
	return blend, nil
}

func buildDiversityNode(config map[string]interface{}) (pipeline.Node, error) {
	return &rerank.Diversity{
		Factor: conv.ConfigGetFloat64(config, "factor", 0.3),
	}, nil
}

func buildTopNNode(config map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopN{
		N: int(conv.ConfigGetInt64(config, "n", 0)),
	}, nil
}

func buildFilterNode(config map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := config["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet[string](filterMap, "type", "")
		switch filterType {
		case "blacklist":
			ids := conv.SliceAnyToString(filterMap["event_ids"])
			if ids == nil {
				ids = []string{}
			}
			filters = append(filters, &filter.BlacklistFilter{
				EventIDs: ids,
				Key:      conv.ConfigGet[string](filterMap, "key", ""),
			})

		case "rule":
			expr := conv.ConfigGet[string](filterMap, "expr", "")
			if expr == "" {
				return nil, fmt.Errorf("rule filter requires expr")
			}
			filters = append(filters, &filter.RuleFilter{Expr: expr})

		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}

	return &filter.FilterNode{Filters: filters}, nil
}
