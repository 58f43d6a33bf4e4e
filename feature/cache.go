package feature

import (
	"context"
	"sync"
	"time"

	"github.com/evrec/evrec/core"
)

// Cache 是 EventFeatures 的进程内缓存，LRU + TTL。
// 目录特征按需计算一次并缓存到进程生命周期结束；上游数据变化
// 不会自动失效，需要调用 Invalidate/Clear。
type Cache struct {
	mu            sync.RWMutex
	entries       map[string]*cacheEntry
	maxSize       int
	defaultTTL    time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

type cacheEntry struct {
	features   *core.EventFeatures
	expireTime time.Time
	accessTime time.Time
}

// NewCache 创建特征缓存。maxSize <= 0 时为 10000，ttl <= 0 时为 24h。
func NewCache(maxSize int, defaultTTL time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	c := &Cache{
		entries:       make(map[string]*cacheEntry),
		maxSize:       maxSize,
		defaultTTL:    defaultTTL,
		cleanupTicker: time.NewTicker(1 * time.Minute),
		stopCleanup:   make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *Cache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanExpired()
		case <-c.stopCleanup:
			c.cleanupTicker.Stop()
			return
		}
	}
}

func (c *Cache) cleanExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, entry := range c.entries {
		if now.After(entry.expireTime) {
			delete(c.entries, id)
		}
	}
	c.evictLRULocked()
}

// evictLRULocked 超过容量时删除最久未访问的条目（调用方持锁）。
func (c *Cache) evictLRULocked() {
	for len(c.entries) > c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for key, entry := range c.entries {
			if first || entry.accessTime.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.accessTime
				first = false
			}
		}
		if first {
			return
		}
		delete(c.entries, oldestKey)
	}
}

// Get 读取缓存特征；过期视为未命中。
func (c *Cache) Get(ctx context.Context, eventID string) (*core.EventFeatures, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[eventID]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expireTime) {
		return nil, false
	}
	entry.accessTime = time.Now()
	return entry.features, true
}

// Set 写入缓存特征；ttl <= 0 时使用默认 TTL。
func (c *Cache) Set(ctx context.Context, eventID string, f *core.EventFeatures, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[eventID] = &cacheEntry{
		features:   f,
		expireTime: time.Now().Add(ttl),
		accessTime: time.Now(),
	}
	c.evictLRULocked()
}

// Invalidate 删除单个活动的缓存特征。
func (c *Cache) Invalidate(ctx context.Context, eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, eventID)
}

// Clear 清空缓存（手动刷新目录时使用）。
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Len 返回当前缓存条目数。
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close 关闭缓存，停止清理协程。
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
}
