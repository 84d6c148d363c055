package xlru

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const maxSize = 1 << 24

// Config 缓存配置
type Config struct {
	// Size 最大条目数，(0, 16777216]
	Size int

	// TTL 条目最长存活时间，0 表示只受 SetUntil 的截止时间约束
	TTL time.Duration
}

// Option 缓存选项
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

type entry[V any] struct {
	value    V
	deadline time.Time // 零值表示不过期
}

// Cache 按条目过期的 LRU 缓存，并发安全
type Cache[K comparable, V any] struct {
	lru *lru.Cache[K, entry[V]]
	ttl time.Duration
	now func() time.Time
}

// New 创建缓存
func New[K comparable, V any](cfg Config, opts ...Option) (*Cache[K, V], error) {
	if cfg.Size <= 0 {
		return nil, ErrInvalidSize
	}
	if cfg.Size > maxSize {
		return nil, ErrSizeExceedsMax
	}
	if cfg.TTL < 0 {
		return nil, ErrInvalidTTL
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	inner, err := lru.New[K, entry[V]](cfg.Size)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{lru: inner, ttl: cfg.TTL, now: o.now}, nil
}

// Get 读取未过期的条目，过期条目被移除
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if !e.deadline.IsZero() && !c.now().Before(e.deadline) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set 写入条目，只受 TTL 约束；返回是否淘汰了旧条目
func (c *Cache[K, V]) Set(key K, value V) bool {
	return c.SetUntil(key, value, time.Time{})
}

// SetUntil 写入条目，until 之后失效；until 为零值时只受 TTL 约束
//
// until 不晚于当前时间时不写入。
func (c *Cache[K, V]) SetUntil(key K, value V, until time.Time) bool {
	now := c.now()
	deadline := until
	if c.ttl > 0 {
		if byTTL := now.Add(c.ttl); deadline.IsZero() || byTTL.Before(deadline) {
			deadline = byTTL
		}
	}
	if !deadline.IsZero() && !now.Before(deadline) {
		return false
	}
	return c.lru.Add(key, entry[V]{value: value, deadline: deadline})
}

// Delete 删除条目，返回条目是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	return c.lru.Remove(key)
}

// Len 条目数，可能包含尚未被读到的过期条目
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Clear 清空
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}
