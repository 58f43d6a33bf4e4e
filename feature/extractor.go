package feature

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
)

// Extractor 从目录活动记录派生 EventFeatures：关键词袋、时段事实、
// 场地分类，以及可选的文本向量。
// 向量化失败按缺数据处理（Embedding 为 nil），不中断批处理。
type Extractor struct {
	// Embedder 为空时所有特征的 Embedding 均为 nil。
	Embedder core.EmbeddingService

	// MaxKeywords 是关键词袋上限，默认 20。
	MaxKeywords int

	Log logrus.FieldLogger
}

func (e *Extractor) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// Extract 计算单个活动的特征。
func (e *Extractor) Extract(ctx context.Context, ev *core.Event) *core.EventFeatures {
	f := &core.EventFeatures{
		EventID:     ev.ID,
		Name:        ev.Name,
		Category:    ev.Category,
		Description: ev.Description,
		Keywords:    extractKeywords(ev.Name+" "+ev.Description, e.maxKeywords()),
	}

	f.Temporal = core.TemporalFeatures{
		Hour:      ev.StartTime.Hour(),
		Weekday:   ev.StartTime.Weekday(),
		IsWeekend: core.DayBucket(ev.StartTime.Weekday()) == "weekend",
		TimeOfDay: core.TimeOfDayBucket(ev.StartTime.Hour()),
	}
	f.Location = core.LocationFeatures{
		VenueType:  classifyVenue(ev.LocationName),
		HasAddress: strings.TrimSpace(ev.LocationName) != "",
	}

	if e.Embedder != nil {
		text := strings.TrimSpace(ev.Name + ". " + ev.Description)
		if text != "." && text != "" {
			emb, err := e.Embedder.Embed(ctx, text)
			if err != nil {
				e.logger().WithField("event_id", ev.ID).WithError(err).
					Debug("embedding failed, feature kept without vector")
			} else {
				f.Embedding = emb
			}
		}
	}

	return f
}

func (e *Extractor) maxKeywords() int {
	if e.MaxKeywords > 0 {
		return e.MaxKeywords
	}
	return 20
}

// 常见虚词，不进关键词袋。
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "by": {}, "for": {}, "from": {},
	"in": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "with": {},
	"is": {}, "are": {}, "be": {}, "will": {}, "this": {}, "that": {},
}

// extractKeywords 生成去重的小写词袋，保持出现顺序，上限 max。
func extractKeywords(text string, max int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, max)
	for _, w := range fields {
		if len(w) < 3 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) >= max {
			break
		}
	}
	return out
}

// venueKinds 是场地类型的字面量分类表，按声明顺序匹配，先命中先得。
var venueKinds = []struct {
	kind     string
	patterns []string
}{
	{"virtual", []string{"virtual", "online", "zoom", "remote", "livestream"}},
	{"hotel", []string{"hotel", "resort", "suite"}},
	{"conference_center", []string{"conference center", "convention", "expo", "congress", "forum hall"}},
	{"bar", []string{"bar", "club", "lounge", "pub", "rooftop"}},
	{"campus", []string{"university", "campus", "college", "institute"}},
}

// classifyVenue 依据场地名中的字面量做粗分类，未命中为 other。
func classifyVenue(location string) string {
	if strings.TrimSpace(location) == "" {
		return "other"
	}
	lower := strings.ToLower(location)
	for _, vk := range venueKinds {
		for _, p := range vk.patterns {
			if strings.Contains(lower, p) {
				return vk.kind
			}
		}
	}
	return "other"
}
