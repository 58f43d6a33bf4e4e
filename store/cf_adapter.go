package store

import (
	"context"
	"encoding/json"

	"github.com/evrec/evrec/core"
)

// CFAdapter 是基于 core.Store 接口的协同过滤数据适配器。
// 为 recall.ItemCF 提供用户-物品共现数据。
//
// key 约定：
//   用户物品交互：{KeyPrefix}:user:{userID}   → map[eventID]score
//   物品用户交互：{KeyPrefix}:item:{eventID}  → map[userID]score
//   所有物品列表：{KeyPrefix}:items           → []eventID
type CFAdapter struct {
	store core.Store

	// KeyPrefix 是存储 key 的前缀，默认 "cf"。
	KeyPrefix string
}

// NewCFAdapter 创建一个基于 core.Store 的协同过滤适配器。
func NewCFAdapter(s core.Store, keyPrefix string) *CFAdapter {
	if keyPrefix == "" {
		keyPrefix = "cf"
	}
	return &CFAdapter{store: s, KeyPrefix: keyPrefix}
}

func (a *CFAdapter) getScoreMap(ctx context.Context, key string) (map[string]float64, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return make(map[string]float64), nil
		}
		return nil, err
	}
	var result map[string]float64
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *CFAdapter) GetUserItems(ctx context.Context, userID string) (map[string]float64, error) {
	return a.getScoreMap(ctx, a.KeyPrefix+":user:"+userID)
}

func (a *CFAdapter) GetItemUsers(ctx context.Context, eventID string) (map[string]float64, error) {
	return a.getScoreMap(ctx, a.KeyPrefix+":item:"+eventID)
}

func (a *CFAdapter) GetAllItems(ctx context.Context) ([]string, error) {
	data, err := a.store.Get(ctx, a.KeyPrefix+":items")
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var result []string
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AddInteraction 登记一条共现数据（测试/数据灌入用）。
func (a *CFAdapter) AddInteraction(ctx context.Context, userID, eventID string, score float64) error {
	userItems, err := a.GetUserItems(ctx, userID)
	if err != nil {
		return err
	}
	userItems[eventID] = score
	if err := a.setScoreMap(ctx, a.KeyPrefix+":user:"+userID, userItems); err != nil {
		return err
	}

	itemUsers, err := a.GetItemUsers(ctx, eventID)
	if err != nil {
		return err
	}
	itemUsers[userID] = score
	if err := a.setScoreMap(ctx, a.KeyPrefix+":item:"+eventID, itemUsers); err != nil {
		return err
	}

	items, err := a.GetAllItems(ctx)
	if err != nil {
		return err
	}
	for _, id := range items {
		if id == eventID {
			return nil
		}
	}
	items = append(items, eventID)
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.KeyPrefix+":items", data)
}

func (a *CFAdapter) setScoreMap(ctx context.Context, key string, m map[string]float64) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}
