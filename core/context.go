package core

import "github.com/evrec/evrec/pkg/utils"

// RecommendContext 承载用户/请求信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string // 使用 string 类型（通用，支持所有 ID 格式）
	Scene  string

	// Query 是本次请求的自由文本查询（可为空）。
	// 语义召回只在 Query 非空时参与。
	Query string

	// Preference 是已学习的用户偏好向量；冷启动用户为 nil。
	Preference *PreferenceVector

	// Labels 是用户级标签，可驱动整个 Pipeline 行为。
	Labels map[string]utils.Label

	// Params 请求级上下文参数：num_recommendations、exclude_interacted、
	// 实时特征等（建议加 realtime_ 前缀区分）。
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
