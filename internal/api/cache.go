package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"runwar/internal/logger"
	"runwar/internal/metrics"
)

// ViewportCache：地图视口响应的 Redis 缓存
// 背景：视口查询是最高频读路径，落库一次归属变动后全部失效；
// 用版本号前缀整体失效，避免逐键扫描删除。
// 约束：rc 为 nil 或 ttl 为 0 时整体关闭，读写都成为空操作
type ViewportCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewViewportCache(rc *redis.Client, ttlSeconds int) *ViewportCache {
	if rc == nil || ttlSeconds <= 0 {
		return &ViewportCache{}
	}
	return &ViewportCache{rc: rc, ttl: time.Duration(ttlSeconds) * time.Second}
}

const viewportVersionKey = "tiles:ver"

func (c *ViewportCache) enabled() bool { return c != nil && c.rc != nil }

// key：包含当前版本号的缓存键
func (c *ViewportCache) key(ctx context.Context, bboxKey string) string {
	ver, _ := c.rc.Get(ctx, viewportVersionKey).Result()
	if ver == "" {
		ver = "0"
	}
	return fmt.Sprintf("tiles:v%s:%s", ver, bboxKey)
}

func (c *ViewportCache) Get(ctx context.Context, bboxKey string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	s, err := c.rc.Get(ctx, c.key(ctx, bboxKey)).Result()
	if err != nil || s == "" {
		metrics.ViewportCacheMissesTotal.Inc()
		return "", false
	}
	metrics.ViewportCacheHitsTotal.Inc()
	return s, true
}

func (c *ViewportCache) Set(ctx context.Context, bboxKey, payload string) {
	if !c.enabled() {
		return
	}
	c.rc.Set(ctx, c.key(ctx, bboxKey), payload, c.ttl)
}

// InvalidateViewport：归属变动后整体失效；版本号自增让旧键自然过期
func (c *ViewportCache) InvalidateViewport(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.rc.Incr(ctx, viewportVersionKey).Err(); err != nil {
		logger.L().Warn("viewport_invalidate_error", "err", err)
	}
}
