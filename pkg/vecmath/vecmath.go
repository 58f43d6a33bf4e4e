// Package vecmath 提供推荐链路共用的向量运算：余弦相似度、归一化、加权平均。
package vecmath

import "math"

// Cosine 计算两个向量的余弦相似度。
// 维度不一致或任一向量为零向量时返回 0。
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Norm 计算向量的 L2 范数。
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// L2Normalize 返回单位化后的新向量；零向量原样返回副本。
func L2Normalize(v []float64) []float64 {
	out := append([]float64(nil), v...)
	n := Norm(v)
	if n == 0 {
		return out
	}
	for i := range out {
		out[i] /= n
	}
	return out
}

// WeightedMean 计算多个同维向量的加权平均，权重内部归一化到总和为 1。
// 向量列表为空、权重总和为 0 或维度不一致时返回 nil。
func WeightedMean(vecs [][]float64, weights []float64) []float64 {
	if len(vecs) == 0 || len(vecs) != len(weights) {
		return nil
	}
	dim := len(vecs[0])
	var totalW float64
	for i, v := range vecs {
		if len(v) != dim {
			return nil
		}
		totalW += weights[i]
	}
	if dim == 0 || totalW == 0 {
		return nil
	}
	out := make([]float64, dim)
	for i, v := range vecs {
		w := weights[i] / totalW
		for j := range v {
			out[j] += w * v[j]
		}
	}
	return out
}

// Scale 返回 v 的 s 倍（新向量）。
func Scale(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * s
	}
	return out
}

// Add 返回 a+b（新向量）；维度不一致返回 nil。
func Add(a, b []float64) []float64 {
	if len(a) != len(b) {
		return nil
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}
