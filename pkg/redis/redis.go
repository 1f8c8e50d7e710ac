package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/config"
)

// Client Redis 客户端封装
// 用于周排组重排的存储层锁与接口限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 重排锁 ──

const regenLockPrefix = "schedule:regen:lock:"

// AcquireRegenerationLock 以 SET NX PX 获取指定周的重排锁
// 返回 false 表示锁已被持有
func (c *Client) AcquireRegenerationLock(ctx context.Context, weekID string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, regenLockPrefix+weekID, token, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseRegenerationLock 强制释放指定周的重排锁（幂等）
func (c *Client) ReleaseRegenerationLock(ctx context.Context, weekID string) error {
	return c.rdb.Del(ctx, regenLockPrefix+weekID).Err()
}

// IsRegenerationLocked 查询指定周是否存在重排锁
func (c *Client) IsRegenerationLocked(ctx context.Context, weekID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, regenLockPrefix+weekID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 限流 ──

// CheckRateLimit 基于有序集合的滑动窗口计数
// 返回 true 表示本次请求允许通过
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
