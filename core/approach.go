package core

// Approach 表示混合推荐中的一路打分来源。
// 融合阶段对 Approach 做穷举计算，避免字符串 key 的隐式契约。
type Approach string

const (
	ApproachContent       Approach = "content"       // 内容召回：用户偏好向量 / 查询向量 vs 物品向量
	ApproachCollaborative Approach = "collaborative" // 协同过滤：外部引擎产出的候选
	ApproachSemantic      Approach = "semantic"      // 语义检索：仅在请求带 query 时参与
	ApproachPopularity    Approach = "popularity"    // 热门兜底：候选不足时的补位
)

// Approaches 是融合阶段穷举的全部来源，顺序即默认权重展示顺序。
var Approaches = []Approach{
	ApproachContent,
	ApproachCollaborative,
	ApproachSemantic,
	ApproachPopularity,
}

// Valid 检查 Approach 是否为已知来源。
func (a Approach) Valid() bool {
	switch a {
	case ApproachContent, ApproachCollaborative, ApproachSemantic, ApproachPopularity:
		return true
	default:
		return false
	}
}
