package filter

import (
	"context"
	"sync"

	"github.com/evrec/evrec/core"
)

// InteractedFilter 过滤掉用户已交互过的活动。
// 交互记录由协作方提供；Store 未接入时按空集合处理（全部放行）。
// 同一次请求内的已交互集合只读取一次。
type InteractedFilter struct {
	Store core.InteractionStore

	mu    sync.Mutex
	cache map[string]map[string]struct{}
}

func (f *InteractedFilter) Name() string {
	return "filter.interacted"
}

func (f *InteractedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Store == nil || rctx == nil || rctx.UserID == "" || item == nil {
		return false, nil
	}

	interacted, err := f.interactedSet(ctx, rctx.UserID)
	if err != nil {
		return false, err
	}
	_, ok := interacted[item.ID]
	return ok, nil
}

func (f *InteractedFilter) interactedSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	f.mu.Lock()
	if f.cache == nil {
		f.cache = make(map[string]map[string]struct{})
	}
	if set, ok := f.cache[userID]; ok {
		f.mu.Unlock()
		return set, nil
	}
	f.mu.Unlock()

	set, err := f.Store.InteractedEventIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = map[string]struct{}{}
	}

	f.mu.Lock()
	f.cache[userID] = set
	f.mu.Unlock()
	return set, nil
}

// Invalidate 丢弃某个用户的已交互集合缓存（新交互写入后调用）。
func (f *InteractedFilter) Invalidate(userID string) {
	f.mu.Lock()
	delete(f.cache, userID)
	f.mu.Unlock()
}

var _ Filter = (*InteractedFilter)(nil)
