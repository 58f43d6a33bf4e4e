package eval

import (
	"math"
	"time"
)

// Metrics 是一次离线评估的全部指标。
// 业务/系统指标不在此列：没有数据来源，对应访问器显式返回未实现。
type Metrics struct {
	ID        string
	Timestamp time.Time

	// PrecisionAt 等按 k 分桶，只在有非空真值的用户上取均值。
	PrecisionAt map[int]float64
	RecallAt    map[int]float64
	F1At        map[int]float64
	NDCGAt      map[int]float64
	MAP         float64

	// IntraListDiversity 是去重比例，不是真正的内容多样性。
	IntraListDiversity   float64
	CatalogCoverage      float64
	PersonalizationScore float64

	// ResponseTime 只来自调用方 metadata，没有则为 0。
	ResponseTime float64

	// PrecisionCI 是 precision@5 序列的 t 分布置信区间（钳到 [0,1]）。
	PrecisionCI [2]float64

	// Users 参与统计的用户数（真值非空）。
	Users int

	Metadata map[string]any
}

// precisionAt = |top-k ∩ truth| / k
func precisionAt(recs []string, truth map[string]struct{}, k int) float64 {
	if k <= 0 {
		return 0
	}
	hits := 0
	for i, id := range recs {
		if i >= k {
			break
		}
		if _, ok := truth[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// recallAt = |top-k ∩ truth| / |truth|
func recallAt(recs []string, truth map[string]struct{}, k int) float64 {
	if len(truth) == 0 {
		return 0
	}
	hits := 0
	for i, id := range recs {
		if i >= k {
			break
		}
		if _, ok := truth[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(truth))
}

func f1Of(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// ndcgAt：DCG = Σ 1/log2(rank+2)（命中位），IDCG 取理想序。
func ndcgAt(recs []string, truth map[string]struct{}, k int) float64 {
	var dcg float64
	for i, id := range recs {
		if i >= k {
			break
		}
		if _, ok := truth[id]; ok {
			dcg += 1 / math.Log2(float64(i)+2)
		}
	}
	ideal := len(truth)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for i := 0; i < ideal; i++ {
		idcg += 1 / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// averagePrecision：经典 AP，命中位的滚动精度均值，除以 |truth|。
func averagePrecision(recs []string, truth map[string]struct{}) float64 {
	if len(truth) == 0 {
		return 0
	}
	hits := 0
	var sum float64
	for i, id := range recs {
		if _, ok := truth[id]; ok {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(len(truth))
}

// uniquenessRatio = |去重后| / |列表|。
func uniquenessRatio(recs []string) float64 {
	if len(recs) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(recs))
	for _, id := range recs {
		seen[id] = struct{}{}
	}
	return float64(len(seen)) / float64(len(recs))
}

// jaccardDistance = 1 - |A∩B| / |A∪B|。
func jaccardDistance(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for id := range a {
		if _, ok := b[id]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return 1 - float64(inter)/float64(union)
}

// confidenceInterval 对样本序列做 t 分布置信区间，端点钳到 [0,1]。
func confidenceInterval(values []float64, level float64) [2]float64 {
	n := len(values)
	if n == 0 {
		return [2]float64{0, 0}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if n == 1 {
		return [2]float64{clamp01(mean), clamp01(mean)}
	}

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(n-1))
	margin := tCritical(n-1, level) * sd / math.Sqrt(float64(n))
	return [2]float64{clamp01(mean - margin), clamp01(mean + margin)}
}

// tCritical 返回双侧 t 临界值。小自由度查表，大自由度退化为正态分位数。
func tCritical(df int, level float64) float64 {
	table := t95
	switch {
	case level >= 0.989:
		table = t99
	case level <= 0.911:
		table = t90
	}
	if df <= 0 {
		df = 1
	}
	if df <= len(table) {
		return table[df-1]
	}
	alpha := 1 - level
	return zQuantile(1 - alpha/2)
}

// 双侧 t 临界值表，df = 1..30
var (
	t90 = []float64{
		6.314, 2.920, 2.353, 2.132, 2.015, 1.943, 1.895, 1.860, 1.833, 1.812,
		1.796, 1.782, 1.771, 1.761, 1.753, 1.746, 1.740, 1.734, 1.729, 1.725,
		1.721, 1.717, 1.714, 1.711, 1.708, 1.706, 1.703, 1.701, 1.699, 1.697,
	}
	t95 = []float64{
		12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
		2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
		2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042,
	}
	t99 = []float64{
		63.657, 9.925, 5.841, 4.604, 4.032, 3.707, 3.499, 3.355, 3.250, 3.169,
		3.106, 3.055, 3.012, 2.977, 2.947, 2.921, 2.898, 2.878, 2.861, 2.845,
		2.831, 2.819, 2.807, 2.797, 2.787, 2.779, 2.771, 2.763, 2.756, 2.750,
	}
)

// zQuantile 是标准正态分位数的有理近似（Beasley-Springer-Moro 风格），
// 精度足够做功效计算与大样本置信区间。
func zQuantile(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}
	if p < 0.5 {
		return -zQuantile(1 - p)
	}
	// Abramowitz & Stegun 26.2.23
	t := math.Sqrt(-2 * math.Log(1-p))
	const (
		c0 = 2.515517
		c1 = 0.802853
		c2 = 0.010328
		d1 = 1.432788
		d2 = 0.189269
		d3 = 0.001308
	)
	return t - (c0+c1*t+c2*t*t)/(1+d1*t+d2*t*t+d3*t*t*t)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
