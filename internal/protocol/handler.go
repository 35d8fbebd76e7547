package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"placeholder-mc-server/internal/config"
	"placeholder-mc-server/internal/logger"
	"placeholder-mc-server/internal/monitor"
	"placeholder-mc-server/internal/network"
	"placeholder-mc-server/internal/pool"
)

// Handler 占位响应处理器：每个连接只读一个请求、回一个响应，然后关闭
type Handler struct {
	logger         zerolog.Logger
	responses      *ResponseSet
	limiter        RateLimiter
	accessLogger   *logger.AccessLogger
	securityLogger *logger.SecurityLogger
	limitLog       *logger.RateLimitedLogger
	monitor        *monitor.PerformanceMonitor
	bodyPool       *pool.BufferPool
	respPool       *pool.ResponsePool
	maxPacketSize  int
}

// NewHandler 创建处理器。limiter 为 nil 时不限流。
func NewHandler(
	cfg *config.Config,
	log zerolog.Logger,
	responses *ResponseSet,
	limiter RateLimiter,
	accessLogger *logger.AccessLogger,
	securityLogger *logger.SecurityLogger,
	perf *monitor.PerformanceMonitor,
) *Handler {
	maxPacketSize := cfg.Security.MaxPacketSize
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}

	l := log.With().Str("handler", "placeholder").Logger()
	return &Handler{
		logger:         l,
		responses:      responses,
		limiter:        limiter,
		accessLogger:   accessLogger,
		securityLogger: securityLogger,
		limitLog:       logger.NewRateLimitedLogger(l, 5*time.Second),
		monitor:        perf,
		bodyPool:       pool.NewBufferPool(maxPacketSize),
		respPool:       pool.NewResponsePool(4096, 64*1024),
		maxPacketSize:  maxPacketSize,
	}
}

// HandleConnection 处理连接（实现 network.ConnectionHandler 接口）。
// 返回时连接已关闭。
func (h *Handler) HandleConnection(ctx context.Context, conn *network.Connection) error {
	defer conn.Close()

	if h.limiter != nil && !h.limiter.Allow(conn.RemoteIP) {
		h.limitLog.Warn(logger.EventKeyRateLimited).Str("ip", conn.RemoteIP).Msg("连接被限流")
		h.logAccess(conn, h.accessLogger.LogRateLimited(conn.RemoteIP))
		h.monitor.RecordRejected()
		return ErrRateLimited
	}

	peeked, err := conn.Peek(LegacyPeekSize)
	if len(peeked) == 0 {
		// 对端没有发送任何数据就关闭，常见于端口扫描
		conn.Logger.Debug().Err(err).Msg("连接未发送数据")
		return nil
	}

	if kind, ok := DetectLegacyPing(peeked); ok {
		return h.handleLegacy(conn, kind)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return h.handleModern(conn)
}

// handleLegacy 回复 1.6 及更早客户端的 ping
func (h *Handler) handleLegacy(conn *network.Connection, kind LegacyPingKind) error {
	conn.SetState(network.StatePeekedLegacy)

	// 丢弃已收到的请求字节，关闭时内核缓冲区中的未读数据会导致 RST
	if _, err := conn.Discard(conn.Buffered()); err != nil {
		return fmt.Errorf("丢弃旧版 ping 数据失败: %w", err)
	}

	buf := h.respPool.Get()
	defer func() { h.respPool.Put(buf) }()

	buf, err := AppendLegacyKick(buf, LegacyResponse(kind, h.responses))
	if err != nil {
		return err
	}
	if err := h.writeResponse(conn, buf); err != nil {
		return fmt.Errorf("发送旧版响应失败: %w", err)
	}

	conn.SetState(network.StateLegacyResponded)
	h.monitor.RecordResponse(monitor.ResponseLegacy, len(buf), time.Since(conn.StartTime))
	h.logAccess(conn, h.accessLogger.LogLegacyPing(conn.RemoteIP, kind.String()))
	conn.Logger.Debug().Str("legacy_kind", kind.String()).Msg("已回复旧版 ping")
	return nil
}

// handleModern 读取一个握手包并回复 status 或断开消息
func (h *Handler) handleModern(conn *network.Connection) error {
	conn.SetState(network.StatePeekedModern)

	length, err := ReadVarInt(conn)
	if err != nil {
		if errors.Is(err, ErrIncomplete) {
			conn.Logger.Debug().Err(err).Msg("读取包长度失败")
			return err
		}
		h.rejectHandshake(conn, err)
		return err
	}
	if length <= 0 || int(length) > h.maxPacketSize {
		h.securityLogger.LogPacketSizeExceeded(conn.RemoteIP, int(length), h.maxPacketSize)
		h.monitor.RecordProtocolError()
		conn.Logger.Warn().Int32("length", length).Msg("包长度无效")
		return fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	body := h.bodyPool.Get(int(length))
	defer h.bodyPool.Put(body)

	if _, err := io.ReadFull(conn, body); err != nil {
		conn.Logger.Warn().Err(err).Int32("length", length).Msg("握手包不完整")
		return fmt.Errorf("%w: %w", ErrIncomplete, err)
	}

	hs, err := DecodeHandshake(body)
	if err != nil {
		h.rejectHandshake(conn, err)
		return err
	}
	conn.SetState(network.StateModernDecoded)

	conn.Logger.Debug().
		Int32("protocol", hs.ProtocolVersion).
		Str("address", truncate(hs.Hostname, MaxHostnameLen)).
		Uint16("port", hs.Port).
		Stringer("next_state", hs.NextState).
		Msg("收到握手包")
	h.logAccess(conn, h.accessLogger.LogHandshake(
		conn.RemoteIP,
		hs.ProtocolVersion,
		truncate(hs.Hostname, MaxHostnameLen),
		hs.Port,
		int32(hs.NextState),
	))

	buf := h.respPool.Get()
	defer func() { h.respPool.Put(buf) }()

	buf = AppendPacket(buf, StatusResponsePacketID, h.responses.Select(hs.ProtocolVersion, hs.NextState))
	if err := h.writeResponse(conn, buf); err != nil {
		return fmt.Errorf("发送响应失败: %w", err)
	}
	conn.SetState(network.StateResponded)

	kind := monitor.ResponseStatus
	if hs.NextState == StateLogin {
		kind = monitor.ResponseDisconnect
	}
	h.monitor.RecordResponse(kind, len(buf), time.Since(conn.StartTime))
	return nil
}

// rejectHandshake 记录无法解析的握手包，不回复任何数据
func (h *Handler) rejectHandshake(conn *network.Connection, err error) {
	h.monitor.RecordProtocolError()
	conn.Logger.Warn().Err(err).Msg("握手包解析失败")

	details := map[string]any{"error": err.Error()}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		details["field"] = decodeErr.Field
	}
	h.securityLogger.LogProtocolViolation(conn.RemoteIP, "invalid_handshake", details)
	h.logAccess(conn, h.accessLogger.LogProtocolViolation(conn.RemoteIP, err.Error()))
}

func (h *Handler) writeResponse(conn *network.Connection, buf []byte) error {
	if _, err := conn.Write(buf); err != nil {
		return err
	}
	return conn.Flush()
}

func (h *Handler) logAccess(conn *network.Connection, err error) {
	if err != nil {
		conn.Logger.Debug().Err(err).Msg("写入访问日志失败")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
