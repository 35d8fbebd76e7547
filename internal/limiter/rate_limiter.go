package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"placeholder-mc-server/internal/config"
	"placeholder-mc-server/internal/logger"
)

// attackLogEvery 同一 IP 每被拒绝这么多次才写一条告警
const attackLogEvery = 100

// RateLimiter 连接限流器：全局令牌桶 + 每 IP 令牌桶
type RateLimiter struct {
	config        *config.RateLimitConfig
	logger        zerolog.Logger
	attackLogger  *logger.AttackLogger
	globalLimiter *rate.Limiter
	ipLimiters    sync.Map // map[string]*IPLimiterInfo

	// 统计信息
	totalRequests  atomic.Int64
	deniedRequests atomic.Int64
	startTime      time.Time
}

// IPLimiterInfo IP 限流器信息
type IPLimiterInfo struct {
	Limiter      *rate.Limiter
	RequestCount int64
	DeniedCount  int64
	FirstRequest time.Time
	LastRequest  time.Time
	mu           sync.RWMutex
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg *config.RateLimitConfig, log zerolog.Logger) *RateLimiter {
	l := log.With().Str("component", "rate_limiter").Logger()
	return &RateLimiter{
		config:       cfg,
		logger:       l,
		attackLogger: logger.NewAttackLogger(l),
		globalLimiter: rate.NewLimiter(
			rate.Limit(cfg.GlobalLimit),
			cfg.GlobalLimit,
		),
		startTime: time.Now(),
	}
}

// Allow 检查是否允许该 IP 建立新的请求
func (rl *RateLimiter) Allow(ip string) bool {
	rl.totalRequests.Add(1)
	ipLimiter := rl.getOrCreateIPLimiter(ip)

	ipLimiter.mu.Lock()
	ipLimiter.RequestCount++
	ipLimiter.LastRequest = time.Now()
	count := ipLimiter.RequestCount
	ipLimiter.mu.Unlock()

	// 先检查 IP 限流，避免单个 IP 耗尽全局令牌
	if !ipLimiter.Limiter.Allow() {
		if rl.deny(ipLimiter)%attackLogEvery == 1 {
			rl.attackLogger.LogRateLimitTriggered(ip, "ip", count)
		}
		return false
	}

	if !rl.globalLimiter.Allow() {
		if rl.deny(ipLimiter)%attackLogEvery == 1 {
			rl.attackLogger.LogRateLimitTriggered(ip, "global", rl.totalRequests.Load())
		}
		return false
	}

	return true
}

// deny 记录一次拒绝，返回该 IP 的累计拒绝数
func (rl *RateLimiter) deny(ipLimiter *IPLimiterInfo) int64 {
	rl.deniedRequests.Add(1)
	ipLimiter.mu.Lock()
	defer ipLimiter.mu.Unlock()
	ipLimiter.DeniedCount++
	return ipLimiter.DeniedCount
}

// getOrCreateIPLimiter 获取或创建 IP 限流器
func (rl *RateLimiter) getOrCreateIPLimiter(ip string) *IPLimiterInfo {
	if value, ok := rl.ipLimiters.Load(ip); ok {
		return value.(*IPLimiterInfo)
	}

	now := time.Now()
	ipLimiter := &IPLimiterInfo{
		Limiter: rate.NewLimiter(
			rate.Limit(rl.config.IPLimit),
			rl.config.IPLimit,
		),
		FirstRequest: now,
		LastRequest:  now,
	}

	// 并发创建时以先存入的为准
	if actual, loaded := rl.ipLimiters.LoadOrStore(ip, ipLimiter); loaded {
		return actual.(*IPLimiterInfo)
	}

	rl.logger.Debug().
		Str("ip", ip).
		Msg("创建新的 IP 限流器")

	return ipLimiter
}

// CleanupExpiredLimiters 清理超过 CleanupInterval 未活动的 IP 限流器，返回清理数量
func (rl *RateLimiter) CleanupExpiredLimiters() int {
	now := time.Now()
	var expiredIPs []string

	rl.ipLimiters.Range(func(key, value any) bool {
		ipLimiter := value.(*IPLimiterInfo)

		ipLimiter.mu.RLock()
		lastRequest := ipLimiter.LastRequest
		ipLimiter.mu.RUnlock()

		if now.Sub(lastRequest) > rl.config.CleanupInterval {
			expiredIPs = append(expiredIPs, key.(string))
		}
		return true
	})

	for _, ip := range expiredIPs {
		rl.ipLimiters.Delete(ip)
	}

	if len(expiredIPs) > 0 {
		rl.logger.Debug().
			Int("count", len(expiredIPs)).
			Msg("清理过期的 IP 限流器")
	}
	return len(expiredIPs)
}

// StartCleanupRoutine 启动清理协程，ctx 取消后退出
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.CleanupExpiredLimiters()
			}
		}
	}()
}

// ActiveIPs 当前跟踪的 IP 数量
func (rl *RateLimiter) ActiveIPs() int {
	n := 0
	rl.ipLimiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Counters 返回累计请求数与被拒绝数
func (rl *RateLimiter) Counters() (total, denied int64) {
	return rl.totalRequests.Load(), rl.deniedRequests.Load()
}

// GetStats 获取统计信息
func (rl *RateLimiter) GetStats() map[string]any {
	total, denied := rl.Counters()
	uptime := time.Since(rl.startTime)

	return map[string]any{
		"total_requests":          total,
		"denied_requests":         denied,
		"active_ip_count":         rl.ActiveIPs(),
		"avg_requests_per_second": float64(total) / uptime.Seconds(),
		"uptime":                  uptime,
		"global_limit":            rl.config.GlobalLimit,
		"ip_limit":                rl.config.IPLimit,
	}
}

// GetIPStats 获取指定 IP 的统计信息
func (rl *RateLimiter) GetIPStats(ip string) map[string]any {
	value, ok := rl.ipLimiters.Load(ip)
	if !ok {
		return map[string]any{
			"ip":    ip,
			"found": false,
		}
	}

	ipLimiter := value.(*IPLimiterInfo)
	ipLimiter.mu.RLock()
	defer ipLimiter.mu.RUnlock()

	return map[string]any{
		"ip":             ip,
		"found":          true,
		"request_count":  ipLimiter.RequestCount,
		"denied_count":   ipLimiter.DeniedCount,
		"first_request":  ipLimiter.FirstRequest,
		"last_request":   ipLimiter.LastRequest,
		"current_tokens": ipLimiter.Limiter.Tokens(),
	}
}
