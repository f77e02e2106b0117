package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss 键不存在或已过期
var ErrCacheMiss = errors.New("cache miss")

// Store 缓存存储接口
type Store interface {
	// Set 设置缓存
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存，未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Exists 检查缓存是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Clear 清除所有缓存
	Clear(ctx context.Context) error
	// Close 关闭缓存连接
	Close() error
}

// 缓存命名空间。价格数据过期最快，申报文件最慢。
const (
	NamespacePrice   = "price"
	NamespaceNews    = "news"
	NamespaceFilings = "filings"
	NamespacePlan    = "plan"
)

// Key 构造命名空间内的缓存键
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// TTLs 各命名空间的过期时间
type TTLs struct {
	Price   time.Duration
	News    time.Duration
	Filings time.Duration
	Plan    time.Duration
}

// For 返回命名空间对应的 TTL，未知命名空间用价格 TTL 兜底
func (t TTLs) For(namespace string) time.Duration {
	switch namespace {
	case NamespaceNews:
		return t.News
	case NamespaceFilings:
		return t.Filings
	case NamespacePlan:
		return t.Plan
	default:
		return t.Price
	}
}
