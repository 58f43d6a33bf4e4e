package rank

import (
	"context"
	"math"
	"testing"

	"github.com/evrec/evrec/core"
)

func TestBlendWeightedSum(t *testing.T) {
	single := core.NewItem("evt-1")
	single.SetComponent(core.ApproachContent, 1.0, 0.8)

	multi := core.NewItem("evt-2")
	multi.SetComponent(core.ApproachContent, 1.0, 0.8)
	multi.SetComponent(core.ApproachCollaborative, 1.0, 0.6)

	low := core.NewItem("evt-3")
	low.SetComponent(core.ApproachPopularity, 0.5, 0.5) // 0.1×0.5 = 0.05 <= 0.1

	empty := core.NewItem("evt-4") // 无分量，丢弃

	blend := &Blend{}
	items, err := blend.Process(context.Background(), nil, []*core.Item{single, multi, low, empty})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(items))
	}

	// 多路命中：0.4 + 0.3 + 共识加成 0.1 = 0.8
	if items[0].ID != "evt-2" {
		t.Errorf("top = %s, want evt-2", items[0].ID)
	}
	if math.Abs(items[0].Score-0.8) > 1e-9 {
		t.Errorf("evt-2 score = %f, want 0.8", items[0].Score)
	}
	if math.Abs(items[0].Confidence-0.7) > 1e-9 {
		t.Errorf("evt-2 confidence = %f, want mean 0.7", items[0].Confidence)
	}

	// 单路：0.4，无加成
	if math.Abs(items[1].Score-0.4) > 1e-9 {
		t.Errorf("evt-1 score = %f, want 0.4", items[1].Score)
	}
	if items[1].Confidence != 0.8 {
		t.Errorf("evt-1 confidence = %f, want 0.8", items[1].Confidence)
	}

	if _, ok := items[0].Labels["rank_model"]; !ok {
		t.Error("rank_model label missing")
	}
}

func TestBlendCallerWeights(t *testing.T) {
	it := core.NewItem("evt-1")
	it.SetComponent(core.ApproachSemantic, 1.0, 0.9)

	blend := &Blend{Weights: map[core.Approach]float64{core.ApproachSemantic: 0.9}}
	items, err := blend.Process(context.Background(), nil, []*core.Item{it})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(items) != 1 || math.Abs(items[0].Score-0.9) > 1e-9 {
		t.Fatalf("caller weights not applied: %+v", items)
	}
}
