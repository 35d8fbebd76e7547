package limiter

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"placeholder-mc-server/internal/config"
)

func newTestLimiter(ipLimit, globalLimit int) *RateLimiter {
	cfg := &config.RateLimitConfig{
		IPLimit:         ipLimit,
		GlobalLimit:     globalLimit,
		CleanupInterval: time.Minute,
	}
	return NewRateLimiter(cfg, zerolog.Nop())
}

func TestAllowPerIP(t *testing.T) {
	rl := newTestLimiter(2, 100)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("前两个请求应当通过")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("超过 IP 突发量的请求应当被拒绝")
	}

	// 其他 IP 不受影响
	if !rl.Allow("10.0.0.2") {
		t.Error("不同 IP 应当有独立的令牌桶")
	}

	total, denied := rl.Counters()
	if total != 4 || denied != 1 {
		t.Errorf("Counters() = (%d, %d), want (4, 1)", total, denied)
	}
}

func TestAllowGlobal(t *testing.T) {
	rl := newTestLimiter(10, 3)

	allowed := 0
	for i := 0; i < 5; i++ {
		ip := "10.0.1." + string(rune('1'+i))
		if rl.Allow(ip) {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("全局限流后通过 %d 个请求, want 3", allowed)
	}
}

func TestCleanupExpiredLimiters(t *testing.T) {
	rl := newTestLimiter(5, 100)
	rl.config.CleanupInterval = 10 * time.Millisecond

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	if got := rl.ActiveIPs(); got != 2 {
		t.Fatalf("ActiveIPs() = %d, want 2", got)
	}

	if n := rl.CleanupExpiredLimiters(); n != 0 {
		t.Errorf("刚活动的限流器被清理了 %d 个", n)
	}

	time.Sleep(30 * time.Millisecond)
	if n := rl.CleanupExpiredLimiters(); n != 2 {
		t.Errorf("CleanupExpiredLimiters() = %d, want 2", n)
	}
	if got := rl.ActiveIPs(); got != 0 {
		t.Errorf("清理后 ActiveIPs() = %d, want 0", got)
	}
}

func TestGetIPStats(t *testing.T) {
	rl := newTestLimiter(1, 100)
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.1")

	stats := rl.GetIPStats("10.0.0.1")
	if stats["found"] != true {
		t.Fatal("应当找到 IP 统计")
	}
	if stats["request_count"] != int64(2) {
		t.Errorf("request_count = %v, want 2", stats["request_count"])
	}
	if stats["denied_count"] != int64(1) {
		t.Errorf("denied_count = %v, want 1", stats["denied_count"])
	}

	if missing := rl.GetIPStats("10.9.9.9"); missing["found"] != false {
		t.Error("未知 IP 应当返回 found=false")
	}
}
