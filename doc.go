// Package evrec 是会议活动的混合推荐引擎（Event Recommender）。
//
// 设计要点：
// - Pipeline-first: 推荐逻辑通过 Node 串联（Recall → Filter → Rank → ReRank → PostProcess）
// - 多路融合: 内容/协同/语义/热门各自打分，按权重融合并加共识加成
// - 偏好学习: 从查询交互历史加权聚合用户偏好向量，带置信度
// - 离线评估: P/R/F1/NDCG@k、MAP、多样性指标与确定性 A/B 分流
package evrec

import "github.com/evrec/evrec/pipeline"

// 轻量 facade：便于用户直接 import 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
