package feature

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/utils"
)

// Source 是实时特征来源的抽象：按物品批量取数值特征。
// 实现可以是 Feast 在线特征、Redis Hash 或任何外部特征服务。
type Source interface {
	Name() string

	// Features 返回 map[eventID]map[featureName]value；
	// 取不到的物品可以缺席，调用方按缺数据处理。
	Features(ctx context.Context, eventIDs []string) (map[string]map[string]float64, error)
}

// EnrichNode 是特征补充 Node（PostProcess 阶段）：
// 把 Source 取到的实时特征合并进 item.Features，供后续策略/观测使用。
// 取数失败整批跳过（记日志），不中断 Pipeline。
type EnrichNode struct {
	Source Source

	// Prefix 加在特征名前，区分实时特征与召回期特征。
	Prefix string

	Log logrus.FieldLogger
}

func (n *EnrichNode) Name() string        { return "feature.enrich" }
func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *EnrichNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Source == nil || len(items) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			ids = append(ids, it.ID)
		}
	}

	feats, err := n.Source.Features(ctx, ids)
	if err != nil {
		log := n.Log
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithError(err).Warn("feature source unavailable, enrich skipped")
		return items, nil
	}

	for _, it := range items {
		if it == nil {
			continue
		}
		fv, ok := feats[it.ID]
		if !ok {
			continue
		}
		if it.Features == nil {
			it.Features = make(map[string]float64, len(fv))
		}
		for k, v := range fv {
			it.Features[n.Prefix+k] = v
		}
		it.PutLabel("feature_source", utils.Label{Value: n.Source.Name(), Source: "postprocess"})
	}
	return items, nil
}
