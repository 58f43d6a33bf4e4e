package prefs

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pkg/vecmath"
)

// hashEmbedder 是确定性的词袋哈希向量化，测试用。
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

type memInteractions struct {
	byUser map[string][]*core.Interaction
}

func (m *memInteractions) ListInteractions(_ context.Context, userID string) ([]*core.Interaction, error) {
	return m.byUser[userID], nil
}

func (m *memInteractions) InteractedEventIDs(_ context.Context, userID string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, in := range m.byUser[userID] {
		if in.EventID != "" {
			out[in.EventID] = struct{}{}
		}
	}
	return out, nil
}

func (m *memInteractions) AppendInteraction(_ context.Context, in *core.Interaction) error {
	if m.byUser == nil {
		m.byUser = map[string][]*core.Interaction{}
	}
	m.byUser[in.UserID] = append(m.byUser[in.UserID], in)
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func sampleInteractions(userID string, n int, now time.Time) []*core.Interaction {
	queries := []string{
		"ethereum scaling conference",
		"defi staking workshop",
		"zero knowledge hackathon",
		"nft art party",
		"web3 founders networking",
		"crypto payments summit",
	}
	out := make([]*core.Interaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &core.Interaction{
			UserID:    userID,
			Query:     queries[i%len(queries)],
			QueryType: core.QueryTypeEvent,
			EventID:   "evt-" + string(rune('a'+i%6)),
			Success:   i%2 == 0,
			Timestamp: now.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	return out
}

func newTestLearner(store core.InteractionStore) *Learner {
	return NewLearner(store, &hashEmbedder{dim: 32}, quietLog(), Config{})
}

func TestLearnNotEnoughInteractions(t *testing.T) {
	store := &memInteractions{byUser: map[string][]*core.Interaction{
		"u1": sampleInteractions("u1", 2, time.Now()),
	}}
	l := newTestLearner(store)

	vec, err := l.Learn(context.Background(), "u1", false)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if vec != nil {
		t.Fatalf("expected nil vector for cold user, got %+v", vec)
	}
}

func TestLearnProducesUnitVector(t *testing.T) {
	store := &memInteractions{byUser: map[string][]*core.Interaction{
		"u1": sampleInteractions("u1", 6, time.Now()),
	}}
	l := newTestLearner(store)

	vec, err := l.Learn(context.Background(), "u1", false)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if vec == nil {
		t.Fatal("expected vector")
	}
	if norm := vecmath.Norm(vec.Embedding); math.Abs(norm-1) > 1e-6 {
		t.Errorf("embedding norm = %f, want 1", norm)
	}
	if vec.Confidence <= 0 || vec.Confidence > 1 {
		t.Errorf("confidence = %f, want (0,1]", vec.Confidence)
	}
	if vec.InteractionCount != 6 {
		t.Errorf("interaction count = %d, want 6", vec.InteractionCount)
	}
	if len(vec.SourceQueries) == 0 || len(vec.SourceQueries) > 20 {
		t.Errorf("source queries = %d, want 1..20", len(vec.SourceQueries))
	}
	if vec.ContentHash == "" {
		t.Error("content hash not set")
	}
	if len(vec.CategoryWeights) == 0 {
		t.Error("expected category weights from taxonomy hits")
	}
	for k, w := range vec.CategoryWeights {
		if w < 0 || w > 1 {
			t.Errorf("category weight %s = %f out of range", k, w)
		}
	}
}

func TestLearnCacheFreshness(t *testing.T) {
	now := time.Now()
	store := &memInteractions{byUser: map[string][]*core.Interaction{
		"u1": sampleInteractions("u1", 5, now),
	}}
	l := newTestLearner(store)

	first, err := l.Learn(context.Background(), "u1", false)
	if err != nil || first == nil {
		t.Fatalf("first Learn: vec=%v err=%v", first, err)
	}

	// 新交互入库，但缓存仍新鲜：非强制调用不重算
	store.byUser["u1"] = sampleInteractions("u1", 6, now)
	second, err := l.Learn(context.Background(), "u1", false)
	if err != nil {
		t.Fatalf("second Learn: %v", err)
	}
	if second.InteractionCount != first.InteractionCount {
		t.Errorf("cached call recomputed: count %d != %d", second.InteractionCount, first.InteractionCount)
	}

	forced, err := l.Learn(context.Background(), "u1", true)
	if err != nil {
		t.Fatalf("forced Learn: %v", err)
	}
	if forced.InteractionCount != 6 {
		t.Errorf("forced recompute count = %d, want 6", forced.InteractionCount)
	}
}

func TestConfidenceClamped(t *testing.T) {
	store := &memInteractions{byUser: map[string][]*core.Interaction{
		"u1": sampleInteractions("u1", 60, time.Now()),
	}}
	l := newTestLearner(store)

	vec, err := l.Learn(context.Background(), "u1", false)
	if err != nil || vec == nil {
		t.Fatalf("Learn: vec=%v err=%v", vec, err)
	}
	if vec.Confidence > 1 {
		t.Errorf("confidence = %f, want <= 1", vec.Confidence)
	}
}

func TestUpdateFromInteraction(t *testing.T) {
	store := &memInteractions{byUser: map[string][]*core.Interaction{
		"u1": sampleInteractions("u1", 5, time.Now()),
	}}
	l := newTestLearner(store)

	if _, err := l.Learn(context.Background(), "u1", false); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	before := l.Cached("u1")

	ok, err := l.UpdateFromInteraction(context.Background(), "u1", &core.Interaction{
		UserID: "u1",
		Query:  "ai agent demo day",
	})
	if err != nil || !ok {
		t.Fatalf("UpdateFromInteraction: ok=%v err=%v", ok, err)
	}

	after := l.Cached("u1")
	if after.InteractionCount != before.InteractionCount+1 {
		t.Errorf("count = %d, want %d", after.InteractionCount, before.InteractionCount+1)
	}
	if after.ContentHash == before.ContentHash {
		t.Error("content hash not recomputed")
	}
	if norm := vecmath.Norm(after.Embedding); math.Abs(norm-1) > 1e-6 {
		t.Errorf("embedding norm = %f, want 1", norm)
	}

	// 过短查询静默跳过
	ok, err = l.UpdateFromInteraction(context.Background(), "u1", &core.Interaction{
		UserID: "u1",
		Query:  "ab",
	})
	if err != nil {
		t.Fatalf("short query: %v", err)
	}
	if ok {
		t.Error("short query should be skipped")
	}
}

func TestSimilarUsers(t *testing.T) {
	now := time.Now()
	store := &memInteractions{byUser: map[string][]*core.Interaction{}}
	for _, userID := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			store.byUser[userID] = append(store.byUser[userID], &core.Interaction{
				UserID:    userID,
				Query:     "defi lending workshop session",
				QueryType: core.QueryTypeEvent,
				Success:   true,
				Timestamp: now.Add(-time.Duration(i) * time.Hour),
			})
		}
	}
	for i := 0; i < 5; i++ {
		store.byUser["c"] = append(store.byUser["c"], &core.Interaction{
			UserID:    "c",
			Query:     "nft art party tonight",
			QueryType: core.QueryTypeEvent,
			Success:   true,
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
		})
	}

	l := newTestLearner(store)
	for _, userID := range []string{"a", "b", "c"} {
		if _, err := l.Learn(context.Background(), userID, false); err != nil {
			t.Fatalf("Learn %s: %v", userID, err)
		}
	}

	similar := l.SimilarUsers("a", 5)
	if len(similar) == 0 {
		t.Fatal("expected similar users")
	}
	if similar[0].UserID != "b" {
		t.Errorf("most similar = %s, want b", similar[0].UserID)
	}
	for i := 1; i < len(similar); i++ {
		if similar[i].Score > similar[i-1].Score {
			t.Error("similar users not sorted descending")
		}
	}
}

func TestMatchCategories(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"ETH staking and Yield farming", "defi"},
		{"founder pitch demo day", "demo_day"},
		{"weekend hackathon", "hackathon"},
	}
	for _, tt := range tests {
		hits := matchCategories(tt.query)
		found := false
		for _, h := range hits {
			if h == tt.want {
				found = true
			}
		}
		if !found {
			t.Errorf("matchCategories(%q) = %v, want to contain %s", tt.query, hits, tt.want)
		}
	}
}
