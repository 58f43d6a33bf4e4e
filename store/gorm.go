package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/evrec/evrec/core"
)

// GormStore 是托管 Postgres 实现的 Store（gorm + postgres driver）。
// 表结构为简单 KV（key 主键 + bytea value + 可空过期时间），
// 适配"托管数据库即服务"类后端；有序集合等扩展操作不支持。
type GormStore struct {
	db *gorm.DB
}

type kvRecord struct {
	Key      string `gorm:"primaryKey;size:512"`
	Value    []byte
	ExpireAt *time.Time `gorm:"index"`
}

func (kvRecord) TableName() string { return "evrec_kv" }

// NewGormStore 连接 Postgres 并迁移 KV 表。
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreWithDB 复用已有 *gorm.DB（测试或共享连接池场景）。
func NewGormStoreWithDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) Name() string { return "gorm" }

func (g *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec kvRecord
	err := g.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.ExpireAt != nil && time.Now().After(*rec.ExpireAt) {
		return nil, core.ErrStoreNotFound
	}
	return rec.Value, nil
}

func (g *GormStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	rec := kvRecord{Key: key, Value: value}
	if len(ttl) > 0 && ttl[0] > 0 {
		expire := time.Now().Add(time.Duration(ttl[0]) * time.Second)
		rec.ExpireAt = &expire
	}
	return g.db.WithContext(ctx).Save(&rec).Error
}

func (g *GormStore) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Delete(&kvRecord{}, "key = ?", key).Error
}

func (g *GormStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	var recs []kvRecord
	if err := g.db.WithContext(ctx).Where("key IN ?", keys).Find(&recs).Error; err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(recs))
	now := time.Now()
	for _, rec := range recs {
		if rec.ExpireAt != nil && now.After(*rec.ExpireAt) {
			continue
		}
		result[rec.Key] = rec.Value
	}
	return result, nil
}

func (g *GormStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	var expire *time.Time
	if len(ttl) > 0 && ttl[0] > 0 {
		t := time.Now().Add(time.Duration(ttl[0]) * time.Second)
		expire = &t
	}
	recs := make([]kvRecord, 0, len(kvs))
	for k, v := range kvs {
		recs = append(recs, kvRecord{Key: k, Value: v, ExpireAt: expire})
	}
	if len(recs) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Save(&recs).Error
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ core.Store = (*GormStore)(nil)
