package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Policy 重试策略（最大尝试次数、初始退避、倍数、退避上限）
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultPolicy 默认策略：3 次，1s 起步，翻倍，封顶 8s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    8 * time.Second,
	}
}

// ApplyDefaults 为未设置的字段填充默认值
func (p *Policy) ApplyDefaults() {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
}

// Delay 第 attempt 次失败后的等待时间（attempt 从 1 开始）
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// ── 选项 ──

type options struct {
	retryIf func(error) bool
	onRetry func(attempt int, delay time.Duration, err error)
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option 调整单次 Do 调用的行为
type Option func(*options)

// RetryIf 指定哪些错误可以重试，默认除 context 取消外全部重试
func RetryIf(fn func(error) bool) Option {
	return func(o *options) { o.retryIf = fn }
}

// OnRetry 每次进入退避前回调
func OnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithSleep 替换退避等待实现（测试用）
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do 按策略执行 fn，返回结果、实际尝试次数与最后一次错误
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, int, error) {
	p.ApplyDefaults()
	o := options{
		retryIf: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res, err := fn(ctx, attempt)
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts || !o.retryIf(err) {
			return zero, attempt, err
		}

		delay := p.Delay(attempt)
		if o.onRetry != nil {
			o.onRetry(attempt, delay, err)
		}
		if serr := o.sleep(ctx, delay); serr != nil {
			return zero, attempt, lastErr
		}
	}
	return zero, p.MaxAttempts, lastErr
}
