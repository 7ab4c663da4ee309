package geocode

import (
	"context"
	"region-sync/internal/geo"
	"region-sync/internal/logger"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：逆地理结果的两级缓存（进程内 LRU + Redis）
// 背景：同一位置附近的重复提交无需再次调用外部接口；键为 geocode:<geohash>。
// 约束：geohash 精度 8（约 38m×19m）；缓存读写失败不影响解析结果；错误结果不缓存。
type Cached struct {
	Next  Resolver
	rc    *redis.Client
	local *LRU
	ttl   time.Duration
}

// NewCached：rc 可为空，此时仅使用进程内缓存
func NewCached(next Resolver, rc *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{Next: next, rc: rc, local: NewLRU(4096, ttl), ttl: ttl}
}

func cacheKey(lat, lon float64) string { return "geocode:" + geo.Geohash(lat, lon, 8) }

func (c *Cached) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	key := cacheKey(lat, lon)
	if s, ok := c.local.Get(key); ok {
		return s, nil
	}
	if c.rc != nil {
		if s, err := c.rc.Get(ctx, key).Result(); err == nil && s != "" {
			logger.L().Debug("geocode_cache_hit", "key", key)
			c.local.Set(key, s)
			return s, nil
		}
	}
	name, err := c.Next.Resolve(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	c.local.Set(key, name)
	if c.rc != nil {
		if err := c.rc.Set(ctx, key, name, c.ttl).Err(); err != nil {
			logger.L().Debug("geocode_cache_set_error", "key", key, "err", err)
		}
	}
	return name, nil
}
