package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/redis"
)

// ScheduleLocker 存储层周锁（跨进程）
type ScheduleLocker interface {
	// Acquire 返回 false 表示已被其他进程持有
	Acquire(ctx context.Context, weekID string) (bool, error)
	// ForceRelease 无条件释放（幂等）
	ForceRelease(ctx context.Context, weekID string) error
	// IsLocked 任一进程持有该周锁时为 true
	IsLocked(ctx context.Context, weekID string) (bool, error)
}

// NewScheduleLocker rdb 为 nil 时降级为进程内空锁（仅依赖状态表互斥）
func NewScheduleLocker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) ScheduleLocker {
	if rdb == nil {
		logger.Warn("Redis 未配置，重排锁降级为进程内互斥")
		return noopLocker{}
	}
	return &redisLocker{rdb: rdb, ttl: ttl}
}

type redisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func (l *redisLocker) Acquire(ctx context.Context, weekID string) (bool, error) {
	return l.rdb.AcquireRegenerationLock(ctx, weekID, l.ttl)
}

func (l *redisLocker) ForceRelease(ctx context.Context, weekID string) error {
	return l.rdb.ReleaseRegenerationLock(ctx, weekID)
}

func (l *redisLocker) IsLocked(ctx context.Context, weekID string) (bool, error) {
	return l.rdb.IsRegenerationLocked(ctx, weekID)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (bool, error) { return true, nil }
func (noopLocker) ForceRelease(context.Context, string) error { return nil }
func (noopLocker) IsLocked(context.Context, string) (bool, error) { return false, nil }
