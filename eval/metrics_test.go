package eval

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func items(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func TestNewEvaluatorRequiresCatalogSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on non-positive catalog size")
		}
	}()
	NewEvaluator(0, quietLog())
}

func TestEvaluatePerfectRanking(t *testing.T) {
	e := NewEvaluator(100, quietLog())
	m := e.Evaluate(
		map[string][]*core.Item{"u1": items("a", "b", "c", "d", "e")},
		map[string][]string{"u1": {"a", "b"}},
		nil,
	)

	if m.PrecisionAt[1] != 1 {
		t.Errorf("precision@1 = %f, want 1", m.PrecisionAt[1])
	}
	if math.Abs(m.RecallAt[3]-1) > 1e-9 {
		t.Errorf("recall@3 = %f, want 1", m.RecallAt[3])
	}
	if math.Abs(m.NDCGAt[5]-1) > 1e-9 {
		t.Errorf("ndcg@5 = %f, want 1 for ideal ordering", m.NDCGAt[5])
	}
	if math.Abs(m.MAP-1) > 1e-9 {
		t.Errorf("map = %f, want 1", m.MAP)
	}
	// precision@5 = 2/5
	if math.Abs(m.PrecisionAt[5]-0.4) > 1e-9 {
		t.Errorf("precision@5 = %f, want 0.4", m.PrecisionAt[5])
	}
	if m.Users != 1 {
		t.Errorf("users = %d, want 1", m.Users)
	}
	if m.ID == "" {
		t.Error("metrics id not set")
	}
}

func TestEvaluateSkipsEmptyTruth(t *testing.T) {
	e := NewEvaluator(100, quietLog())
	m := e.Evaluate(
		map[string][]*core.Item{
			"u1": items("a", "b"),
			"u2": items("x", "y"), // 无真值，整体跳过
		},
		map[string][]string{"u1": {"a"}},
		nil,
	)
	if m.Users != 1 {
		t.Errorf("users = %d, want 1 (empty truth skipped)", m.Users)
	}
	if m.PrecisionAt[1] != 1 {
		t.Errorf("precision@1 = %f, skipped user must not drag average", m.PrecisionAt[1])
	}
}

func TestEvaluateDiversityAndCoverage(t *testing.T) {
	e := NewEvaluator(4, quietLog())
	m := e.Evaluate(
		map[string][]*core.Item{
			"u1": items("a", "b"),
			"u2": items("c", "d"),
		},
		map[string][]string{"u1": {"a"}, "u2": {"c"}},
		nil,
	)

	if m.IntraListDiversity != 1 {
		t.Errorf("intra-list diversity = %f, want 1 for unique lists", m.IntraListDiversity)
	}
	// 4 个不同物品 / 目录 4 = 1（并验证钳制）
	if m.CatalogCoverage != 1 {
		t.Errorf("coverage = %f, want 1", m.CatalogCoverage)
	}
	// 两用户集合不相交：Jaccard 距离 1
	if math.Abs(m.PersonalizationScore-1) > 1e-9 {
		t.Errorf("personalization = %f, want 1", m.PersonalizationScore)
	}
}

func TestEvaluateResponseTimeFromMetadata(t *testing.T) {
	e := NewEvaluator(100, quietLog())
	m := e.Evaluate(
		map[string][]*core.Item{"u1": items("a")},
		map[string][]string{"u1": {"a"}},
		map[string]any{"response_time": 0.25},
	)
	if m.ResponseTime != 0.25 {
		t.Errorf("response time = %f, want 0.25", m.ResponseTime)
	}
}

func TestEvaluateAppendsHistory(t *testing.T) {
	e := NewEvaluator(100, quietLog())
	for i := 0; i < 3; i++ {
		e.Evaluate(map[string][]*core.Item{"u1": items("a")}, map[string][]string{"u1": {"a"}}, nil)
	}
	if got := len(e.History()); got != 3 {
		t.Errorf("history = %d, want 3", got)
	}
}

func TestConfidenceIntervalClamped(t *testing.T) {
	ci := confidenceInterval([]float64{0.9, 1.0, 1.0, 0.95}, 0.95)
	if ci[0] < 0 || ci[1] > 1 {
		t.Errorf("ci = %v, want clamped to [0,1]", ci)
	}
	if ci[0] > ci[1] {
		t.Errorf("ci = %v, lower > upper", ci)
	}

	single := confidenceInterval([]float64{0.5}, 0.95)
	if single[0] != 0.5 || single[1] != 0.5 {
		t.Errorf("single sample ci = %v, want degenerate [0.5, 0.5]", single)
	}
}

func TestNDCGBounds(t *testing.T) {
	truth := map[string]struct{}{"a": {}, "b": {}}
	cases := [][]string{
		{"a", "b", "c"},
		{"c", "b", "a"},
		{"x", "y", "z"},
	}
	for _, recs := range cases {
		v := ndcgAt(recs, truth, 3)
		if v < 0 || v > 1 {
			t.Errorf("ndcg(%v) = %f out of [0,1]", recs, v)
		}
	}
	if ndcgAt([]string{"a", "b"}, truth, 2) != 1 {
		t.Error("ideal ordering should give ndcg 1")
	}
	if ndcgAt([]string{"x"}, truth, 1) != 0 {
		t.Error("no hits should give ndcg 0")
	}
}

func TestBusinessAndSystemMetricsNotImplemented(t *testing.T) {
	e := NewEvaluator(100, quietLog())

	if _, err := e.BusinessMetrics(); !core.IsNotImplemented(err) {
		t.Errorf("BusinessMetrics err = %v, want NOT_IMPLEMENTED", err)
	}
	if _, err := e.SystemMetrics(); !core.IsNotImplemented(err) {
		t.Errorf("SystemMetrics err = %v, want NOT_IMPLEMENTED", err)
	}
}

func TestZQuantile(t *testing.T) {
	// 常用分位数的近似精度
	tests := []struct {
		p    float64
		want float64
	}{
		{0.975, 1.96},
		{0.95, 1.645},
		{0.8, 0.8416},
	}
	for _, tt := range tests {
		if got := zQuantile(tt.p); math.Abs(got-tt.want) > 0.01 {
			t.Errorf("zQuantile(%f) = %f, want ~%f", tt.p, got, tt.want)
		}
	}
}
