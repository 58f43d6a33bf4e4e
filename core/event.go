package core

import "time"

// Event 是目录中的一条活动记录，字段来自外部目录存储，
// 缺失字段容忍为空值（外部目录不保证字段齐全）。
type Event struct {
	ID           string
	Name         string
	Category     string
	Description  string
	LocationName string
	StartTime    time.Time

	// Popularity 是外部目录维护的热度分（热门兜底用），缺省为 0。
	Popularity float64
}

// TemporalFeatures 是从活动开始时间派生的时段事实。
type TemporalFeatures struct {
	Hour      int
	Weekday   time.Weekday
	IsWeekend bool

	// TimeOfDay 取值 morning / afternoon / evening / night。
	TimeOfDay string
}

// LocationFeatures 是从场地名派生的事实。
type LocationFeatures struct {
	// VenueType 取值 virtual / hotel / conference_center / bar / campus / other。
	VenueType  string
	HasAddress bool
}

// EventFeatures 是按需计算、进程内缓存的物品特征。
// Embedding 可能为 nil（向量化失败或文本为空），打分时跳过该物品。
type EventFeatures struct {
	EventID     string
	Name        string
	Category    string
	Description string

	Embedding []float64

	// Keywords 是去重后的小写词袋（有界）。
	Keywords []string

	Temporal TemporalFeatures
	Location LocationFeatures
}

// TimeOfDayBucket 将小时映射到时段桶：morning 6-12 / afternoon 12-18 /
// evening 18-24 / night 其余。
func TimeOfDayBucket(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	case hour >= 18 && hour < 24:
		return "evening"
	default:
		return "night"
	}
}

// DayBucket 将星期映射到天桶：weekday / weekend。
func DayBucket(d time.Weekday) string {
	if d == time.Saturday || d == time.Sunday {
		return "weekend"
	}
	return "weekday"
}
