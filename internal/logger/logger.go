package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"placeholder-mc-server/internal/config"
)

// Setup 设置日志
func Setup(cfg *config.Config) (zerolog.Logger, error) {
	// 设置日志级别
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("无效的日志级别 '%s': %w", cfg.Logging.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	// 设置时间格式
	zerolog.TimeFieldFormat = time.RFC3339

	writer, err := newWriter(&cfg.Logging)
	if err != nil {
		return zerolog.Logger{}, err
	}

	// 创建日志器
	logger := zerolog.New(writer).With().
		Timestamp().
		Str("service", "placeholder-mc-server").
		Logger()

	// 设置全局日志器
	log.Logger = logger

	return logger, nil
}

// newWriter 根据配置创建输出写入器
func newWriter(cfg *config.LoggingConfig) (io.Writer, error) {
	var writers []io.Writer

	console := func(out io.Writer) io.Writer {
		if cfg.Format == "console" {
			return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
		return out
	}

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		writers = append(writers, console(os.Stdout))

	case "stderr":
		writers = append(writers, console(os.Stderr))

	case "file":
		// 确保日志目录存在
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}

		// 配置日志轮转
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})

		// 如果是控制台格式，同时输出到控制台
		if cfg.Format == "console" {
			writers = append(writers, console(os.Stdout))
		}

	default:
		return nil, fmt.Errorf("不支持的日志输出类型: %s", cfg.Output)
	}

	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

// AttackLogger 滥用行为日志记录器
type AttackLogger struct {
	logger zerolog.Logger
}

// NewAttackLogger 创建滥用行为日志记录器
func NewAttackLogger(logger zerolog.Logger) *AttackLogger {
	return &AttackLogger{
		logger: logger.With().Str("component", "attack_logger").Logger(),
	}
}

// LogRateLimitTriggered 记录限流触发
func (al *AttackLogger) LogRateLimitTriggered(ip string, limitType string, requestCount int64) {
	al.logger.Warn().
		Str("event_type", "rate_limit_triggered").
		Str("ip", ip).
		Str("limit_type", limitType).
		Int64("request_count", requestCount).
		Msg("限流触发")
}

// PerformanceLogger 性能日志记录器
type PerformanceLogger struct {
	logger zerolog.Logger
}

// NewPerformanceLogger 创建性能日志记录器
func NewPerformanceLogger(logger zerolog.Logger) *PerformanceLogger {
	return &PerformanceLogger{
		logger: logger.With().Str("component", "performance_logger").Logger(),
	}
}

// LogConnectionMetrics 记录连接指标
func (pl *PerformanceLogger) LogConnectionMetrics(activeConnections, totalConnections int64, avgResponseTime time.Duration) {
	pl.logger.Info().
		Str("metric_type", "connection_metrics").
		Int64("active_connections", activeConnections).
		Int64("total_connections", totalConnections).
		Dur("avg_response_time", avgResponseTime).
		Msg("连接指标")
}

// LogMemoryUsage 记录内存使用情况
func (pl *PerformanceLogger) LogMemoryUsage(allocMB, sysMB float64, gcCount uint32) {
	pl.logger.Debug().
		Str("metric_type", "memory_usage").
		Float64("alloc_mb", allocMB).
		Float64("sys_mb", sysMB).
		Uint32("gc_count", gcCount).
		Msg("内存使用情况")
}

// LogRateLimitMetrics 记录限流指标
func (pl *PerformanceLogger) LogRateLimitMetrics(totalRequests, deniedRequests int64, activeIPs int) {
	pl.logger.Info().
		Str("metric_type", "rate_limit_metrics").
		Int64("total_requests", totalRequests).
		Int64("denied_requests", deniedRequests).
		Int("active_ips", activeIPs).
		Msg("限流指标")
}

// SecurityLogger 安全日志记录器
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger 创建安全日志记录器
func NewSecurityLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "security_logger").Logger(),
	}
}

// LogIPBlocked 记录 IP 被阻止
func (sl *SecurityLogger) LogIPBlocked(ip, reason string) {
	sl.logger.Warn().
		Str("event_type", "ip_blocked").
		Str("ip", ip).
		Str("reason", reason).
		Msg("IP 被阻止")
}

// LogPacketSizeExceeded 记录数据包大小超限
func (sl *SecurityLogger) LogPacketSizeExceeded(ip string, packetSize, maxSize int) {
	sl.logger.Warn().
		Str("event_type", "packet_size_exceeded").
		Str("ip", ip).
		Int("packet_size", packetSize).
		Int("max_size", maxSize).
		Msg("数据包大小超限")
}

// LogProtocolViolation 记录协议违规
func (sl *SecurityLogger) LogProtocolViolation(ip string, violation string, details map[string]any) {
	event := sl.logger.Warn().
		Str("event_type", "protocol_violation").
		Str("ip", ip).
		Str("violation", violation)

	// 添加详细信息
	for key, value := range details {
		event = event.Interface(key, value)
	}

	event.Msg("协议违规")
}

// LoggerManager 日志管理器
type LoggerManager struct {
	mainLogger        zerolog.Logger
	performanceLogger *PerformanceLogger
	securityLogger    *SecurityLogger
	accessLogger      *AccessLogger
	ctx               context.Context
	cancel            context.CancelFunc
	done              chan struct{}
}

// NewLoggerManager 创建日志管理器
func NewLoggerManager(ctx context.Context, cfg *config.Config) (*LoggerManager, error) {
	mainLogger, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	// 创建访问日志记录器
	accessLogger, err := NewAccessLogger(&cfg.AccessLogging)
	if err != nil {
		return nil, fmt.Errorf("创建访问日志记录器失败: %w", err)
	}

	// 创建内部 context，继承自外部 context
	managerCtx, cancel := context.WithCancel(ctx)

	manager := &LoggerManager{
		mainLogger:        mainLogger,
		performanceLogger: NewPerformanceLogger(mainLogger),
		securityLogger:    NewSecurityLogger(mainLogger),
		accessLogger:      accessLogger,
		ctx:               managerCtx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}

	// 启动生命周期管理 goroutine
	go manager.lifecycleManager()

	return manager, nil
}

// GetMainLogger 获取主日志器
func (lm *LoggerManager) GetMainLogger() zerolog.Logger {
	return lm.mainLogger
}

// GetPerformanceLogger 获取性能日志器
func (lm *LoggerManager) GetPerformanceLogger() *PerformanceLogger {
	return lm.performanceLogger
}

// GetSecurityLogger 获取安全日志器
func (lm *LoggerManager) GetSecurityLogger() *SecurityLogger {
	return lm.securityLogger
}

// GetAccessLogger 获取访问日志器
func (lm *LoggerManager) GetAccessLogger() *AccessLogger {
	return lm.accessLogger
}

// lifecycleManager 生命周期管理
func (lm *LoggerManager) lifecycleManager() {
	defer close(lm.done)
	<-lm.ctx.Done()

	// 当 context 被取消时，自动关闭日志管理器
	lm.mainLogger.Debug().Msg("日志管理器收到关闭信号，开始自动关闭")
	if err := lm.accessLogger.Close(); err != nil {
		lm.mainLogger.Error().Err(err).Msg("自动关闭日志管理器失败")
	} else {
		lm.mainLogger.Debug().Msg("日志管理器已自动关闭")
	}
}

// Close 关闭所有日志器并等待访问日志落盘
func (lm *LoggerManager) Close() error {
	// 取消内部 context，这会触发 lifecycleManager 中的自动关闭
	lm.cancel()
	<-lm.done
	return nil
}
