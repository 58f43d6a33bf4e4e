package filter

import (
	"context"

	"github.com/evrec/evrec/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉黑名单中的活动。
type BlacklistFilter struct {
	// EventIDs 是内存中的黑名单活动 ID 列表
	EventIDs []string

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单活动 ID 列表
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}

	for _, id := range f.EventIDs {
		if item.ID == id {
			return true, nil
		}
	}

	if f.Store != nil && f.Key != "" {
		blacklist, err := f.Store.GetBlacklist(ctx, f.Key)
		if err == nil {
			for _, id := range blacklist {
				if item.ID == id {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

var _ Filter = (*BlacklistFilter)(nil)
