package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// 需要限流输出的事件
const (
	EventKeyRateLimited     = "rate_limited"     // 限流器拒绝连接
	EventKeyConnectionLimit = "connection_limit" // 连接数达到上限
)

// RateLimitedLogger 按事件限流的日志器。
// 同一事件在 interval 内只以原级别输出一次，其余降级为 debug，
// 下一次输出时带上被压制的条数。
type RateLimitedLogger struct {
	logger   zerolog.Logger
	interval time.Duration
	events   sync.Map // map[string]*eventThrottle
}

type eventThrottle struct {
	lastLog atomic.Int64 // Unix 纳秒时间戳
	skipped atomic.Int64
}

// NewRateLimitedLogger 创建限流日志器
func NewRateLimitedLogger(logger zerolog.Logger, interval time.Duration) *RateLimitedLogger {
	return &RateLimitedLogger{
		logger:   logger,
		interval: interval,
	}
}

// Info 限流的 Info 日志
func (rl *RateLimitedLogger) Info(event string) *zerolog.Event {
	return rl.throttled(event, zerolog.InfoLevel)
}

// Warn 限流的 Warn 日志
func (rl *RateLimitedLogger) Warn(event string) *zerolog.Event {
	return rl.throttled(event, zerolog.WarnLevel)
}

// Error 错误日志不限流
func (rl *RateLimitedLogger) Error(event string) *zerolog.Event {
	return rl.logger.Error().Str("event", event)
}

// SkippedCount 返回事件自上次输出以来被压制的条数
func (rl *RateLimitedLogger) SkippedCount(event string) int64 {
	if v, ok := rl.events.Load(event); ok {
		return v.(*eventThrottle).skipped.Load()
	}
	return 0
}

func (rl *RateLimitedLogger) throttled(event string, level zerolog.Level) *zerolog.Event {
	v, _ := rl.events.LoadOrStore(event, &eventThrottle{})
	state := v.(*eventThrottle)

	now := time.Now().UnixNano()
	last := state.lastLog.Load()
	if now-last > int64(rl.interval) && state.lastLog.CompareAndSwap(last, now) {
		e := rl.logger.WithLevel(level).Str("event", event)
		if skipped := state.skipped.Swap(0); skipped > 0 {
			e = e.Int64("suppressed", skipped)
		}
		return e
	}

	state.skipped.Add(1)
	return rl.logger.Debug().Str("event", event)
}
