package store

import (
	"context"
	"encoding/json"

	"github.com/evrec/evrec/core"
)

// InteractionAdapter 是基于 core.Store 接口的交互记录适配器。
// 实现 core.InteractionStore 接口。
//
// key 约定：
//   用户交互列表：{KeyPrefix}:user:{userID}
//
// AppendInteraction 采用读-改-写，无跨请求事务语义（last-write-wins，
// 与上游托管存储的行为一致）。
type InteractionAdapter struct {
	store core.Store

	// KeyPrefix 是存储 key 的前缀，默认 "interactions"。
	KeyPrefix string
}

// NewInteractionAdapter 创建一个基于 core.Store 的交互适配器。
func NewInteractionAdapter(s core.Store, keyPrefix string) *InteractionAdapter {
	if keyPrefix == "" {
		keyPrefix = "interactions"
	}
	return &InteractionAdapter{store: s, KeyPrefix: keyPrefix}
}

func (a *InteractionAdapter) userKey(userID string) string {
	return a.KeyPrefix + ":user:" + userID
}

func (a *InteractionAdapter) ListInteractions(ctx context.Context, userID string) ([]*core.Interaction, error) {
	data, err := a.store.Get(ctx, a.userKey(userID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*core.Interaction
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *InteractionAdapter) InteractedEventIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	ins, err := a.ListInteractions(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ins))
	for _, in := range ins {
		if in.EventID != "" {
			out[in.EventID] = struct{}{}
		}
	}
	return out, nil
}

func (a *InteractionAdapter) AppendInteraction(ctx context.Context, in *core.Interaction) error {
	ins, err := a.ListInteractions(ctx, in.UserID)
	if err != nil {
		return err
	}
	ins = append(ins, in)
	data, err := json.Marshal(ins)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.userKey(in.UserID), data)
}

var _ core.InteractionStore = (*InteractionAdapter)(nil)
