package recall

import (
	"context"

	"github.com/evrec/evrec/core"
)

// Source 表示一个可复用的召回源（内容/协同/语义/热门）。
// 每个召回源把自家打分写进 Item 的对应 Approach 分量，
// 供 rank.Blend 做加权融合。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
