package feature

import (
	"context"

	"github.com/evrec/evrec/feast"
	"github.com/evrec/evrec/pkg/conv"
)

// FeastSource 把 Feast 在线特征接成 feature.Source。
//
// 示例：
//
//	client, _ := feast.NewGrpcClient("localhost", 6565, "events")
//	src := &feature.FeastSource{
//	    Client:      client,
//	    EntityKey:   "event_id",
//	    FeatureRefs: []string{"event_stats:ctr", "event_stats:attendance"},
//	}
type FeastSource struct {
	Client feast.Client

	// EntityKey 是实体列名，默认 "event_id"。
	EntityKey string

	// FeatureRefs 是要取的特征引用（view:feature 形式）。
	FeatureRefs []string
}

func (s *FeastSource) Name() string { return "feast" }

func (s *FeastSource) Features(ctx context.Context, eventIDs []string) (map[string]map[string]float64, error) {
	if s.Client == nil || len(eventIDs) == 0 || len(s.FeatureRefs) == 0 {
		return map[string]map[string]float64{}, nil
	}

	entityKey := s.EntityKey
	if entityKey == "" {
		entityKey = "event_id"
	}

	rows := make([]map[string]interface{}, 0, len(eventIDs))
	for _, id := range eventIDs {
		rows = append(rows, map[string]interface{}{entityKey: id})
	}

	resp, err := s.Client.GetOnlineFeatures(ctx, &feast.GetOnlineFeaturesRequest{
		Features:   s.FeatureRefs,
		EntityRows: rows,
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]float64, len(eventIDs))
	for i, fv := range resp.FeatureVectors {
		if i >= len(eventIDs) {
			break
		}
		out[eventIDs[i]] = conv.MapToFloat64(fv.Values)
	}
	return out, nil
}

var _ Source = (*FeastSource)(nil)
