package recall

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/feature"
)

// Index 是目录特征的懒加载视图：首次使用时把活动目录抽取成
// EventFeatures 写进注入的缓存，内容召回与语义召回共享同一份。
type Index struct {
	Catalog   core.CatalogStore
	Extractor *feature.Extractor
	Features  *feature.Cache
	Log       *logrus.Logger

	// SampleSize 加载的目录上限；<=0 表示全量。
	SampleSize int

	mu     sync.Mutex
	loaded bool
	ids    []string
}

// Ensure 懒加载目录特征，只做一次。
func (x *Index) Ensure(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.loaded {
		return nil
	}

	events, err := x.Catalog.ListEvents(ctx, x.SampleSize)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.ID == "" {
			continue
		}
		x.Features.Set(ctx, ev.ID, x.Extractor.Extract(ctx, ev), 0)
		ids = append(ids, ev.ID)
	}
	x.ids = ids
	x.loaded = true
	if x.Log != nil {
		x.Log.WithField("events", len(ids)).Info("recall: catalog features loaded")
	}
	return nil
}

// Reload 清空缓存并重新加载。
func (x *Index) Reload(ctx context.Context) error {
	x.mu.Lock()
	x.loaded = false
	x.ids = nil
	x.mu.Unlock()
	x.Features.Clear(ctx)
	return x.Ensure(ctx)
}

// IDs 返回已加载的活动 ID 列表。
func (x *Index) IDs() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ids
}

// Get 读取单个活动的特征。
func (x *Index) Get(ctx context.Context, eventID string) (*core.EventFeatures, bool) {
	return x.Features.Get(ctx, eventID)
}
