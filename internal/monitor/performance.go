package monitor

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"placeholder-mc-server/internal/logger"
)

// ResponseKind 已发送响应的类别
type ResponseKind int

const (
	ResponseStatus ResponseKind = iota
	ResponseDisconnect
	ResponseLegacy
)

// PerformanceMonitor 性能监控器
type PerformanceMonitor struct {
	// 连接计数
	totalConnections    atomic.Int64
	activeConnections   atomic.Int64
	rejectedConnections atomic.Int64

	// 响应计数
	statusResponses     atomic.Int64
	disconnectResponses atomic.Int64
	legacyResponses     atomic.Int64
	protocolErrors      atomic.Int64
	totalBytes          atomic.Int64

	// 响应耗时，纳秒
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64

	startTime time.Time
}

// Snapshot 某一时刻的统计快照
type Snapshot struct {
	TotalConnections    int64
	ActiveConnections   int64
	RejectedConnections int64
	StatusResponses     int64
	DisconnectResponses int64
	LegacyResponses     int64
	ProtocolErrors      int64
	TotalBytes          int64
	AvgResponseTime     time.Duration
	Uptime              time.Duration
}

// NewPerformanceMonitor 创建性能监控器
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{startTime: time.Now()}
}

// RecordConnection 记录连接建立
func (pm *PerformanceMonitor) RecordConnection() {
	pm.totalConnections.Add(1)
	pm.activeConnections.Add(1)
}

// RecordConnectionClose 记录连接关闭
func (pm *PerformanceMonitor) RecordConnectionClose() {
	pm.activeConnections.Add(-1)
}

// RecordRejected 记录在握手前被拒绝的连接（黑名单、连接数上限、限流）
func (pm *PerformanceMonitor) RecordRejected() {
	pm.rejectedConnections.Add(1)
}

// RecordProtocolError 记录无法解析的请求
func (pm *PerformanceMonitor) RecordProtocolError() {
	pm.protocolErrors.Add(1)
}

// RecordResponse 记录一次已发送的响应
func (pm *PerformanceMonitor) RecordResponse(kind ResponseKind, bytes int, responseTime time.Duration) {
	switch kind {
	case ResponseStatus:
		pm.statusResponses.Add(1)
	case ResponseDisconnect:
		pm.disconnectResponses.Add(1)
	case ResponseLegacy:
		pm.legacyResponses.Add(1)
	}
	pm.totalBytes.Add(int64(bytes))
	pm.totalResponseTime.Add(int64(responseTime))
	pm.responseCount.Add(1)
}

// Snapshot 获取当前统计
func (pm *PerformanceMonitor) Snapshot() Snapshot {
	s := Snapshot{
		TotalConnections:    pm.totalConnections.Load(),
		ActiveConnections:   pm.activeConnections.Load(),
		RejectedConnections: pm.rejectedConnections.Load(),
		StatusResponses:     pm.statusResponses.Load(),
		DisconnectResponses: pm.disconnectResponses.Load(),
		LegacyResponses:     pm.legacyResponses.Load(),
		ProtocolErrors:      pm.protocolErrors.Load(),
		TotalBytes:          pm.totalBytes.Load(),
		Uptime:              time.Since(pm.startTime),
	}
	if n := pm.responseCount.Load(); n > 0 {
		s.AvgResponseTime = time.Duration(pm.totalResponseTime.Load() / n)
	}
	return s
}

// GetStats 获取性能统计
func (pm *PerformanceMonitor) GetStats() map[string]any {
	s := pm.Snapshot()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	responses := s.StatusResponses + s.DisconnectResponses + s.LegacyResponses
	return map[string]any{
		// 连接统计
		"total_connections":    s.TotalConnections,
		"active_connections":   s.ActiveConnections,
		"rejected_connections": s.RejectedConnections,
		"status_responses":     s.StatusResponses,
		"disconnect_responses": s.DisconnectResponses,
		"legacy_responses":     s.LegacyResponses,
		"protocol_errors":      s.ProtocolErrors,
		"responses_per_second": float64(responses) / s.Uptime.Seconds(),
		"total_bytes":          s.TotalBytes,
		"avg_response_time_ms": float64(s.AvgResponseTime) / float64(time.Millisecond),

		// 系统统计
		"uptime_seconds":  s.Uptime.Seconds(),
		"goroutines":      runtime.NumGoroutine(),
		"memory_alloc_mb": float64(m.Alloc) / 1024 / 1024,
		"memory_sys_mb":   float64(m.Sys) / 1024 / 1024,
		"gc_count":        m.NumGC,
	}
}

// RateLimitStats 限流统计来源
type RateLimitStats interface {
	Counters() (total, denied int64)
	ActiveIPs() int
}

// StartReporter 按 interval 周期性写入性能日志，ctx 取消后退出
func (pm *PerformanceMonitor) StartReporter(ctx context.Context, interval time.Duration, perf *logger.PerformanceLogger, limits RateLimitStats) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pm.Report(perf, limits)
			}
		}
	}()
}

// Report 立即写入一次性能日志
func (pm *PerformanceMonitor) Report(perf *logger.PerformanceLogger, limits RateLimitStats) {
	s := pm.Snapshot()
	perf.LogConnectionMetrics(s.ActiveConnections, s.TotalConnections, s.AvgResponseTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	perf.LogMemoryUsage(float64(m.Alloc)/1024/1024, float64(m.Sys)/1024/1024, m.NumGC)

	if limits != nil {
		total, denied := limits.Counters()
		perf.LogRateLimitMetrics(total, denied, limits.ActiveIPs())
	}
}
