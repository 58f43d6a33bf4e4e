package core

import "time"

// 查询类型常量（交互记录的 QueryType 字段）。
const (
	QueryTypeEvent   = "event"
	QueryTypeSpeaker = "speaker"
	QueryTypeDate    = "date"
	QueryTypeGeneral = "general"
)

// Interaction 是一条原始交互记录：用户查询、命中的活动、成功/转化标记。
// 偏好学习与 A/B 分析都以它为输入。
type Interaction struct {
	UserID    string
	Query     string
	QueryType string // event / speaker / date / general
	EventID   string

	// Success 表示该次查询是否被标记为成功（影响学习权重）。
	Success bool

	// Converted 表示该次交互是否转化（A/B 分析用）。
	Converted bool

	Timestamp time.Time
}
