package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"placeholder-mc-server/internal/config"
	"placeholder-mc-server/internal/logger"
	"placeholder-mc-server/internal/monitor"
)

// errEngineUnsupported 当前平台不支持所选网络引擎
var errEngineUnsupported = errors.New("network engine not supported on this platform")

// engine 网络引擎：负责接受连接，并对每个连接调用 Server.admit / serveConnection / release
type engine interface {
	serve() error
	shutdown(ctx context.Context) error
	addr() net.Addr
}

// Server 网络服务器
type Server struct {
	config      *config.Config
	logger      zerolog.Logger
	handler     ConnectionHandler
	monitor     *monitor.PerformanceMonitor
	security    *logger.SecurityLogger
	limitLog    *logger.RateLimitedLogger
	connManager *ConnectionManager
	blacklist   map[string]struct{}
	engine      engine
	engineName  string
	running     atomic.Bool
	connSeq     atomic.Uint64
	ctx         context.Context
}

// NewServer 创建服务器并绑定监听地址
func NewServer(
	cfg *config.Config,
	log zerolog.Logger,
	handler ConnectionHandler,
	perf *monitor.PerformanceMonitor,
	security *logger.SecurityLogger,
	ctx context.Context,
) (*Server, error) {
	l := log.With().Str("component", "network").Logger()
	server := &Server{
		config:      cfg,
		logger:      l,
		handler:     handler,
		monitor:     perf,
		security:    security,
		limitLog:    logger.NewRateLimitedLogger(l, 5*time.Second),
		connManager: NewConnectionManager(32),
		blacklist:   make(map[string]struct{}),
		ctx:         ctx,
	}

	if cfg.Security.EnableIPBlacklist {
		for _, ip := range cfg.Security.IPBlacklist {
			server.blacklist[ip] = struct{}{}
		}
	}

	var err error
	switch cfg.Server.Engine {
	case config.EngineStd:
		server.engine, err = newStdEngine(server)
		server.engineName = config.EngineStd
	default:
		server.engine, err = newNetpollEngine(server)
		server.engineName = config.EngineNetpoll
		if errors.Is(err, errEngineUnsupported) {
			l.Warn().Msg("当前平台不支持 netpoll，改用标准库网络引擎")
			server.engine, err = newStdEngine(server)
			server.engineName = config.EngineStd
		}
	}
	if err != nil {
		return nil, err
	}

	l.Debug().
		Str("engine", server.engineName).
		Str("address", server.engine.addr().String()).
		Msg("网络服务器创建成功")
	return server, nil
}

// Start 启动服务器，阻塞直到监听结束
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("服务器已经在运行")
	}

	s.logger.Info().
		Str("address", s.engine.addr().String()).
		Str("engine", s.engineName).
		Int("max_connections", s.config.Server.MaxConnections).
		Msg("启动网络服务器")

	go s.cleanupConnections()
	go s.lifecycleManager()

	return s.engine.serve()
}

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	return s.engine.addr()
}

// lifecycleManager 生命周期管理
func (s *Server) lifecycleManager() {
	<-s.ctx.Done()

	s.logger.Info().Msg("收到关闭信号，开始停止网络服务器")
	s.running.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.engine.shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("停止网络引擎失败")
	}
	s.connManager.CloseAll()
	s.logger.Info().Msg("网络服务器已停止")
}

// admit 对新连接做准入检查并登记，返回 false 时调用方负责关闭底层连接
func (s *Server) admit(remoteAddr net.Addr, stream Stream) (*Connection, bool) {
	if s.connManager.Count() >= int64(s.config.Server.MaxConnections) {
		s.limitLog.Warn(logger.EventKeyConnectionLimit).
			Str("remote_addr", remoteAddr.String()).
			Msg("连接数达到上限，拒绝连接")
		s.monitor.RecordRejected()
		return nil, false
	}

	remoteIP, _, err := net.SplitHostPort(remoteAddr.String())
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", remoteAddr.String()).
			Msg("解析远程地址失败")
		return nil, false
	}

	if _, blocked := s.blacklist[remoteIP]; blocked {
		s.security.LogIPBlocked(remoteIP, "blacklist")
		s.monitor.RecordRejected()
		return nil, false
	}

	connID := fmt.Sprintf("%s-%d", remoteIP, s.connSeq.Add(1))
	conn := NewConnection(stream, connID, remoteIP, s.logger)
	s.connManager.Store(conn)
	s.monitor.RecordConnection()
	return conn, true
}

// serveConnection 调用处理器，处理结束后连接已关闭
func (s *Server) serveConnection(ctx context.Context, conn *Connection) {
	if err := s.handler.HandleConnection(ctx, conn); err != nil {
		// 扫描器与残缺请求很常见，只在 debug 级别记录
		conn.Logger.Debug().Err(err).Str("state", conn.GetState().String()).Msg("连接处理结束")
	}
	conn.Close()
}

// release 连接关闭后移出连接表，可重复调用
func (s *Server) release(conn *Connection) {
	if !s.connManager.Delete(conn.ID) {
		return
	}
	s.monitor.RecordConnectionClose()

	if duration := time.Since(conn.StartTime); duration > 30*time.Second {
		conn.Logger.Info().
			Dur("duration", duration).
			Msg("长连接关闭")
	}
}

// cleanupConnections 定期关闭存活超过 IdleTimeout 的连接
func (s *Server) cleanupConnections() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.connManager.CleanupExpired(s.config.Server.IdleTimeout); n > 0 {
				s.logger.Info().Int("count", n).Msg("清理过期连接")
			}
		}
	}
}

// GetStats 获取服务器统计信息
func (s *Server) GetStats() map[string]any {
	return map[string]any{
		"connection_count": s.connManager.Count(),
		"running":          s.running.Load(),
		"engine":           s.engineName,
	}
}
