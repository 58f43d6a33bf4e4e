package eval

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pkg/conv"
)

// DefaultKValues 是默认的截断位置。
var DefaultKValues = []int{1, 3, 5, 10}

// Evaluator 做离线推荐质量评估：P/R/F1/NDCG@k、MAP、多样性、
// 个性化程度，外加 precision@5 的置信区间。
// 每次评估追加一条带时间戳的历史记录（进程内，不落盘）。
type Evaluator struct {
	// KValues 为空时使用 DefaultKValues。
	KValues []int

	// ConfidenceLevel 置信区间水平（默认 0.95）。
	ConfidenceLevel float64

	Log *logrus.Logger

	catalogSize int

	mu      sync.Mutex
	history []*Metrics
}

// NewEvaluator 创建评估器。catalogSize 是覆盖率的分母，必须由调用方
// 按真实目录规模传入，非正值直接 panic（配置错误，没有合理缺省）。
func NewEvaluator(catalogSize int, log *logrus.Logger) *Evaluator {
	if catalogSize <= 0 {
		panic(fmt.Sprintf("eval: catalog size must be positive, got %d", catalogSize))
	}
	if log == nil {
		log = logrus.New()
	}
	return &Evaluator{
		ConfidenceLevel: 0.95,
		Log:             log,
		catalogSize:     catalogSize,
	}
}

func (e *Evaluator) kValues() []int {
	if len(e.KValues) > 0 {
		return e.KValues
	}
	return DefaultKValues
}

// Evaluate 对一批用户的推荐列表做离线评估。
//
// recs 是 user → 有序推荐列表，truth 是 user → 相关活动集合。
// 真值为空的用户整体跳过，不贡献 0 分。metadata 原样挂到结果上，
// response_time 字段（秒）会被读进 ResponseTime。
func (e *Evaluator) Evaluate(recs map[string][]*core.Item, truth map[string][]string, metadata map[string]any) *Metrics {
	ks := e.kValues()
	m := &Metrics{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		PrecisionAt: make(map[int]float64, len(ks)),
		RecallAt:    make(map[int]float64, len(ks)),
		F1At:        make(map[int]float64, len(ks)),
		NDCGAt:      make(map[int]float64, len(ks)),
		Metadata:    metadata,
	}

	// 稳定的用户遍历顺序
	users := make([]string, 0, len(recs))
	for userID := range recs {
		users = append(users, userID)
	}
	sort.Strings(users)

	type perUser struct {
		ids   []string
		truth map[string]struct{}
	}
	evaluated := make([]perUser, 0, len(users))
	allRecommended := make(map[string]struct{})
	diversitySum, diversityN := 0.0, 0
	userSets := make([]map[string]struct{}, 0, len(users))

	for _, userID := range users {
		items := recs[userID]
		ids := make([]string, 0, len(items))
		set := make(map[string]struct{}, len(items))
		for _, it := range items {
			if it == nil {
				continue
			}
			ids = append(ids, it.ID)
			set[it.ID] = struct{}{}
			allRecommended[it.ID] = struct{}{}
		}
		if len(ids) > 1 {
			diversitySum += uniquenessRatio(ids)
			diversityN++
		}
		userSets = append(userSets, set)

		truthSet := make(map[string]struct{}, len(truth[userID]))
		for _, id := range truth[userID] {
			truthSet[id] = struct{}{}
		}
		if len(truthSet) == 0 {
			continue
		}
		evaluated = append(evaluated, perUser{ids: ids, truth: truthSet})
	}

	m.Users = len(evaluated)
	if len(evaluated) > 0 {
		var mapSum float64
		precision5 := make([]float64, 0, len(evaluated))
		for _, k := range ks {
			var pSum, rSum, fSum, nSum float64
			for _, u := range evaluated {
				p := precisionAt(u.ids, u.truth, k)
				r := recallAt(u.ids, u.truth, k)
				pSum += p
				rSum += r
				fSum += f1Of(p, r)
				nSum += ndcgAt(u.ids, u.truth, k)
				if k == 5 {
					precision5 = append(precision5, p)
				}
			}
			n := float64(len(evaluated))
			m.PrecisionAt[k] = pSum / n
			m.RecallAt[k] = rSum / n
			m.F1At[k] = fSum / n
			m.NDCGAt[k] = nSum / n
		}
		for _, u := range evaluated {
			mapSum += averagePrecision(u.ids, u.truth)
		}
		m.MAP = mapSum / float64(len(evaluated))
		m.PrecisionCI = confidenceInterval(precision5, e.ConfidenceLevel)
	}

	if diversityN > 0 {
		m.IntraListDiversity = diversitySum / float64(diversityN)
	}
	m.CatalogCoverage = clamp01(float64(len(allRecommended)) / float64(e.catalogSize))
	m.PersonalizationScore = personalization(userSets)
	m.ResponseTime = conv.ConfigGetFloat64(metadata, "response_time", 0)

	e.mu.Lock()
	e.history = append(e.history, m)
	e.mu.Unlock()

	e.Log.WithFields(logrus.Fields{
		"eval_id": m.ID,
		"users":   m.Users,
		"map":     m.MAP,
	}).Info("eval: evaluation recorded")
	return m
}

// personalization 是所有用户对的平均 Jaccard 距离，少于 2 个用户为 0。
func personalization(sets []map[string]struct{}) float64 {
	if len(sets) < 2 {
		return 0
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += jaccardDistance(sets[i], sets[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// History 返回评估历史的浅拷贝（时间升序）。
func (e *Evaluator) History() []*Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Metrics(nil), e.history...)
}

// BusinessMetrics 的契约中没有任何数据来源（CTR、转化、满意度都
// 需要线上埋点），这里显式返回未实现，而不是编造常量。
func (e *Evaluator) BusinessMetrics() (map[string]float64, error) {
	return nil, core.NewDomainError(core.ModuleEval, core.ErrorCodeNotImplemented,
		"business metrics require online instrumentation not wired into this subsystem")
}

// SystemMetrics 同上，response_time 以外的字段没有测量来源。
func (e *Evaluator) SystemMetrics() (map[string]float64, error) {
	return nil, core.NewDomainError(core.ModuleEval, core.ErrorCodeNotImplemented,
		"system metrics are not measured here; pass response_time via Evaluate metadata")
}
