package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/evrec/evrec/core"
)

// CatalogAdapter 是基于 core.Store 接口的活动目录适配器。
// 实现 core.CatalogStore 接口，从 Redis/Postgres 等存储中读取目录数据。
//
// key 约定：
//   单个活动：{KeyPrefix}:event:{eventID}
//   活动 ID 列表：{KeyPrefix}:events
//   热门有序集合（仅 KeyValueStore）：{KeyPrefix}:hot
type CatalogAdapter struct {
	store core.Store

	// KeyPrefix 是存储 key 的前缀，默认 "catalog"。
	KeyPrefix string
}

// NewCatalogAdapter 创建一个基于 core.Store 的目录适配器。
func NewCatalogAdapter(s core.Store, keyPrefix string) *CatalogAdapter {
	if keyPrefix == "" {
		keyPrefix = "catalog"
	}
	return &CatalogAdapter{store: s, KeyPrefix: keyPrefix}
}

func (a *CatalogAdapter) ListEvents(ctx context.Context, limit int) ([]*core.Event, error) {
	data, err := a.store.Get(ctx, a.KeyPrefix+":events")
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, a.KeyPrefix+":event:"+id)
	}
	kvs, err := a.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Event, 0, len(ids))
	for _, id := range ids {
		raw, ok := kvs[a.KeyPrefix+":event:"+id]
		if !ok {
			continue
		}
		var ev core.Event
		if json.Unmarshal(raw, &ev) != nil {
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

func (a *CatalogAdapter) GetEvent(ctx context.Context, eventID string) (*core.Event, error) {
	data, err := a.store.Get(ctx, a.KeyPrefix+":event:"+eventID)
	if err != nil {
		return nil, err
	}
	var ev core.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (a *CatalogAdapter) HotEvents(ctx context.Context, topK int) ([]*core.Event, error) {
	if topK <= 0 {
		topK = 10
	}

	// 优先走有序集合（Redis/Memory 支持 ZRange）
	if kv, ok := a.store.(core.KeyValueStore); ok {
		members, err := kv.ZRange(ctx, a.KeyPrefix+":hot", 0, int64(topK-1))
		if err == nil && len(members) > 0 {
			out := make([]*core.Event, 0, len(members))
			for _, id := range members {
				ev, err := a.GetEvent(ctx, id)
				if err != nil {
					continue
				}
				out = append(out, ev)
			}
			return out, nil
		}
	}

	// 回退：全量读出按 Popularity 降序
	events, err := a.ListEvents(ctx, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Popularity > events[j].Popularity
	})
	if len(events) > topK {
		events = events[:topK]
	}
	return events, nil
}

// SaveEvent 写入一个活动并登记到 ID 列表（测试/数据灌入用）。
func (a *CatalogAdapter) SaveEvent(ctx context.Context, ev *core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, a.KeyPrefix+":event:"+ev.ID, data); err != nil {
		return err
	}

	ids, _ := a.eventIDs(ctx)
	for _, id := range ids {
		if id == ev.ID {
			return a.saveHotScore(ctx, ev)
		}
	}
	ids = append(ids, ev.ID)
	listData, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, a.KeyPrefix+":events", listData); err != nil {
		return err
	}
	return a.saveHotScore(ctx, ev)
}

func (a *CatalogAdapter) saveHotScore(ctx context.Context, ev *core.Event) error {
	if kv, ok := a.store.(core.KeyValueStore); ok && ev.Popularity > 0 {
		return kv.ZAdd(ctx, a.KeyPrefix+":hot", ev.Popularity, ev.ID)
	}
	return nil
}

func (a *CatalogAdapter) eventIDs(ctx context.Context) ([]string, error) {
	data, err := a.store.Get(ctx, a.KeyPrefix+":events")
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

var _ core.CatalogStore = (*CatalogAdapter)(nil)
