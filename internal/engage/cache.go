package engage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CountCache 心数的 redis 旁路缓存。校准后的权威值写入，
// 新视图在首个网关响应前可以先拿缓存渲染。全部尽力而为，
// 缓存故障不影响引擎行为。
type CountCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCountCache(rdb *redis.Client, ttl time.Duration) *CountCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CountCache{rdb: rdb, ttl: ttl}
}

func countKey(contentID string) string { return "engage:heart:" + contentID }

// Get 返回缓存计数，miss 或未配置 redis 时 ok=false
func (c *CountCache) Get(ctx context.Context, contentID string) (int64, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}
	raw, err := c.rdb.Get(ctx, countKey(contentID)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set 写入权威计数
func (c *CountCache) Set(ctx context.Context, contentID string, count int64) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Set(ctx, countKey(contentID), count, c.ttl).Err()
}

// Invalidate 主动失效（内容被删除时）
func (c *CountCache) Invalidate(ctx context.Context, contentID string) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, countKey(contentID)).Err()
}
