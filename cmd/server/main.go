package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"placeholder-mc-server/internal/config"
	"placeholder-mc-server/internal/limiter"
	"placeholder-mc-server/internal/logger"
	"placeholder-mc-server/internal/monitor"
	"placeholder-mc-server/internal/network"
	"placeholder-mc-server/internal/protocol"
	"placeholder-mc-server/internal/response"
)

// 构建时注入的版本信息
var (
	version   = "dev"     // 通过 -ldflags 注入
	buildTime = "unknown" // 通过 -ldflags 注入
	gitCommit = "unknown" // 通过 -ldflags 注入
)

var (
	configPath  = flag.String("config", defaultConfigPath(), "配置文件路径（也可通过 CONFIG 环境变量指定）")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

const (
	AppName = "PlaceholderMCServer"
)

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG"); path != "" {
		return path
	}
	return "config/config.yml"
}

// printVersion 显示详细的版本信息
func printVersion() {
	fmt.Printf("🎮 %s\n", AppName)
	fmt.Printf("📦 Version: %s\n", version)
	if gitCommit != "unknown" {
		fmt.Printf("🔄 Git Commit: %s\n", gitCommit)
	}
	if buildTime != "unknown" {
		fmt.Printf("🕒 Build Time: %s\n", buildTime)
	}
	fmt.Printf("🔧 Go Version: %s\n", runtime.Version())
	fmt.Printf("💻 Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func main() {
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	// 加载配置，不存在时写入默认配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化日志
	logManager, err := logger.NewLoggerManager(ctx, cfg)
	if err != nil {
		fmt.Printf("❌ 初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logManager.Close()
	mainLogger := logManager.GetMainLogger()

	fmt.Printf("🚀 启动 %s\n", AppName)
	fmt.Printf("📦 版本: %s\n", version)
	fmt.Printf("📝 配置: %s\n", *configPath)
	fmt.Printf("📊 日志级别: %s\n", cfg.Logging.Level)
	fmt.Println()

	// 预先生成全部响应
	fmt.Println("⏳ 生成响应...")
	favicon, err := response.LoadFavicon(cfg.Favicon, mainLogger)
	if err != nil {
		fmt.Printf("❌ 加载服务器图标失败: %v\n", err)
		os.Exit(1)
	}
	responses, err := response.Compose(cfg, favicon)
	if err != nil {
		fmt.Printf("❌ 生成响应失败: %v\n", err)
		os.Exit(1)
	}
	mainLogger.Debug().
		Int("status_bytes", len(responses.Status)).
		Int("status_component_bytes", len(responses.StatusComponent)).
		Bool("favicon", favicon != "").
		Msg("响应已生成")

	// 初始化限流器
	fmt.Println("⏳ 初始化限流器...")
	rateLimiter := limiter.NewRateLimiter(&cfg.RateLimit, mainLogger)
	rateLimiter.StartCleanupRoutine(ctx)

	perf := monitor.NewPerformanceMonitor()

	handler := protocol.NewHandler(
		cfg,
		mainLogger,
		responses,
		rateLimiter,
		logManager.GetAccessLogger(),
		logManager.GetSecurityLogger(),
		perf,
	)

	// 创建网络服务器
	fmt.Println("⏳ 创建网络服务器...")
	server, err := network.NewServer(cfg, mainLogger, handler, perf, logManager.GetSecurityLogger(), ctx)
	if err != nil {
		fmt.Printf("❌ 创建网络服务器失败: %v\n", err)
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil {
			mainLogger.Error().Err(err).Msg("网络服务器错误")
			cancel()
		}
	}()

	if cfg.Monitoring.Enabled {
		perf.StartReporter(ctx, cfg.Monitoring.ReportInterval, logManager.GetPerformanceLogger(), rateLimiter)
	}

	fmt.Println()
	fmt.Printf("✨ %s 启动完成\n", AppName)
	fmt.Println("📊 服务器状态:")
	fmt.Printf("   - 监听地址: %s\n", server.Addr())
	fmt.Printf("   - 网络引擎: %v\n", server.GetStats()["engine"])
	fmt.Printf("   - 最大连接数: %d\n", cfg.Server.MaxConnections)
	fmt.Printf("   - IP限流: %d/s\n", cfg.RateLimit.IPLimit)
	fmt.Printf("   - 全局限流: %d/s\n", cfg.RateLimit.GlobalLimit)
	fmt.Println("🎯 使用 Ctrl+C 停止服务器")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		fmt.Printf("\n📡 收到停止信号: %s\n", sig.String())
	case <-ctx.Done():
		fmt.Println("\n📡 上下文已取消")
	}

	fmt.Println("🛑 正在停止服务器...")
	cancel()

	// 等待连接清理
	time.Sleep(1 * time.Second)

	snapshot := perf.Snapshot()
	fmt.Println("📈 服务器统计:")
	fmt.Printf("   - 总连接数: %d\n", snapshot.TotalConnections)
	fmt.Printf("   - status 响应: %d\n", snapshot.StatusResponses)
	fmt.Printf("   - 断开响应: %d\n", snapshot.DisconnectResponses)
	fmt.Printf("   - 旧版响应: %d\n", snapshot.LegacyResponses)
	fmt.Printf("   - 拒绝连接: %d\n", snapshot.RejectedConnections)

	fmt.Printf("👋 %s 已停止\n", AppName)
}
