package hybrid

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/feature"
	"github.com/evrec/evrec/recall"
)

type hashEmbedder struct{ dim int }

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%e.dim] += 1
	}
	return vec, nil
}

func (e *hashEmbedder) Close() error { return nil }

type memCatalog struct{ events []*core.Event }

func (c *memCatalog) ListEvents(_ context.Context, limit int) ([]*core.Event, error) {
	if limit > 0 && limit < len(c.events) {
		return c.events[:limit], nil
	}
	return c.events, nil
}

func (c *memCatalog) GetEvent(_ context.Context, eventID string) (*core.Event, error) {
	for _, ev := range c.events {
		if ev.ID == eventID {
			return ev, nil
		}
	}
	return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "event not found")
}

func (c *memCatalog) HotEvents(_ context.Context, topK int) ([]*core.Event, error) {
	sorted := append([]*core.Event(nil), c.events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Popularity > sorted[j].Popularity })
	if topK > 0 && topK < len(sorted) {
		sorted = sorted[:topK]
	}
	return sorted, nil
}

type fixedPrefs struct{ vec *core.PreferenceVector }

func (p *fixedPrefs) Learn(_ context.Context, _ string, _ bool) (*core.PreferenceVector, error) {
	return p.vec, nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testCatalog() *memCatalog {
	base := time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)
	return &memCatalog{events: []*core.Event{
		{ID: "evt-1", Name: "ETH Summit", Category: "conference", Description: "ethereum scaling conference talks", StartTime: base, Popularity: 90},
		{ID: "evt-2", Name: "DeFi Workshop", Category: "workshop", Description: "defi lending staking workshop", StartTime: base.Add(26 * time.Hour), Popularity: 80},
		{ID: "evt-3", Name: "NFT Party", Category: "party", Description: "nft art party music", StartTime: base.Add(50 * time.Hour), Popularity: 70},
		{ID: "evt-4", Name: "ZK Hackathon", Category: "hackathon", Description: "zero knowledge hackathon", StartTime: base.Add(74 * time.Hour), Popularity: 60},
	}}
}

func testEngine(pref *core.PreferenceVector) *Engine {
	emb := &hashEmbedder{dim: 32}
	catalog := testCatalog()
	index := &recall.Index{
		Catalog:   catalog,
		Extractor: &feature.Extractor{Embedder: emb, Log: quietLog()},
		Features:  feature.NewCache(64, time.Hour),
		Log:       quietLog(),
	}
	return NewEngine(
		&recall.ContentRecall{Index: index, Learner: &fixedPrefs{vec: pref}, Embedder: emb, Log: quietLog()},
		nil,
		&recall.SemanticRecall{Index: index, Embedder: emb, Log: quietLog()},
		&recall.Hot{Catalog: catalog},
		quietLog(),
		Config{},
	)
}

func somePref(emb core.EmbeddingService) *core.PreferenceVector {
	vec, _ := emb.Embed(context.Background(), "ethereum scaling conference")
	p := core.NewPreferenceVector("u1")
	p.Embedding = vec
	p.Confidence = 0.8
	p.CategoryWeights = map[string]float64{"conference": 0.6}
	p.InteractionCount = 10
	return p
}

func TestRecommendRequiresUser(t *testing.T) {
	e := testEngine(nil)
	_, err := e.Recommend(context.Background(), &Request{})
	domainErr := core.GetDomainError(err)
	if domainErr == nil || domainErr.Code != core.ErrorCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestRecommendPadsWithPopular(t *testing.T) {
	// 冷用户、无查询：各路召回为空，全部由热门兜底补齐
	e := testEngine(nil)
	req := NewRequest("cold-user")
	req.Num = 4

	items, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 padded items, got %d", len(items))
	}
	for _, it := range items {
		if it.Score != 0.7 || it.Confidence != 0.5 {
			t.Errorf("fallback item %s score/conf = %f/%f, want 0.7/0.5", it.ID, it.Score, it.Confidence)
		}
		if !it.HasApproach(core.ApproachPopularity) {
			t.Errorf("fallback item %s not tagged popularity", it.ID)
		}
	}
}

func TestRecommendPersonalizedWithQuery(t *testing.T) {
	emb := &hashEmbedder{dim: 32}
	e := testEngine(somePref(emb))
	req := NewRequest("u1")
	req.Query = "ethereum conference"
	req.Num = 3

	items, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(items) == 0 || len(items) > 3 {
		t.Fatalf("expected 1..3 items, got %d", len(items))
	}

	// 语义与内容都命中 evt-1：应该带共识加成排在前面
	var top *core.Item
	for _, it := range items {
		if it.ID == "evt-1" {
			top = it
		}
	}
	if top == nil {
		t.Fatal("evt-1 missing from results")
	}
	if top.ApproachCount() < 2 {
		t.Errorf("evt-1 approaches = %d, want >= 2", top.ApproachCount())
	}

	prefs := e.ApproachPreferences("u1")
	if len(prefs) == 0 {
		t.Error("approach preferences not recorded")
	}
}

func TestRecommendDisabledFallback(t *testing.T) {
	emb := &hashEmbedder{dim: 32}
	catalog := testCatalog()
	index := &recall.Index{
		Catalog:   catalog,
		Extractor: &feature.Extractor{Embedder: emb, Log: quietLog()},
		Features:  feature.NewCache(64, time.Hour),
		Log:       quietLog(),
	}
	e := NewEngine(
		&recall.ContentRecall{Index: index, Learner: &fixedPrefs{}, Embedder: emb, Log: quietLog()},
		nil, nil,
		&recall.Hot{Catalog: catalog},
		quietLog(),
		Config{DisableFallback: true},
	)

	items, err := e.Recommend(context.Background(), NewRequest("cold-user"))
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("fallback disabled, expected empty, got %d", len(items))
	}
}

type statSource map[string]map[string]float64

func (s statSource) Name() string { return "stats" }

func (s statSource) Features(_ context.Context, eventIDs []string) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(eventIDs))
	for _, id := range eventIDs {
		if fv, ok := s[id]; ok {
			out[id] = fv
		}
	}
	return out, nil
}

func TestRecommendEnrichesFeatures(t *testing.T) {
	e := testEngine(nil)
	e.Enrich = &feature.EnrichNode{
		Source: statSource{"evt-1": {"ctr": 0.12}},
		Prefix: "rt_",
		Log:    quietLog(),
	}

	items, err := e.Recommend(context.Background(), NewRequest("cold-user"))
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	var enriched *core.Item
	for _, it := range items {
		if it.ID == "evt-1" {
			enriched = it
		}
	}
	if enriched == nil {
		t.Fatal("evt-1 missing from results")
	}
	if got := enriched.Features["rt_ctr"]; got != 0.12 {
		t.Fatalf("Features[rt_ctr] = %v, want 0.12", got)
	}
	if lbl, ok := enriched.Labels["feature_source"]; !ok || lbl.Value != "stats" {
		t.Fatalf("feature_source label = %+v", enriched.Labels)
	}
}
